package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shopmate/shopmate/internal/cache"
	"github.com/shopmate/shopmate/internal/config"
	"github.com/shopmate/shopmate/internal/crypto"
	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/handlers"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/observability"
	"github.com/shopmate/shopmate/internal/pricing"
	"github.com/shopmate/shopmate/internal/realtime"
	"github.com/shopmate/shopmate/internal/services"
	"github.com/shopmate/shopmate/internal/storage"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
	// BillDir is served over HTTP when bills are stored locally.
	BillDir string

	orders      *services.OrderService
	locations   *services.LocationService
	relayClient *redis.Client
	stopRelay   context.CancelFunc
	relayDone   sync.WaitGroup
	logCloser   io.Closer
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(os.Stdout, logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, logCloser: logCloser}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// init builds every dependency in order. Whatever was built before a failure
// is released by Close.
func (a *App) init() error {
	cfg := a.Config
	logger := a.Logger

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		return err
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, db.Options{
		URL:       cfg.DatabaseURL,
		MaxConns:  cfg.DatabaseMaxConns,
		SlowQuery: cfg.SlowQueryThreshold,
		Logger:    logger.With("component", "db"),
	})
	if err != nil {
		return err
	}
	a.DB = database
	if err := db.Migrate(startupCtx, database); err != nil {
		return err
	}

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize sealer: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		MemoryEntries:         cfg.CacheMemoryEntries,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider

	orderStore := db.NewOrderStore(database)
	customerStore := db.NewCustomerStore(database)
	shopperStore, err := db.NewShopperStore(database, sealer)
	if err != nil {
		return fmt.Errorf("failed to initialize shopper store: %w", err)
	}

	shops := pricing.NewCachedShopSource(db.NewShopStore(database), cacheProvider, cfg.ShopCacheTTL, logger.With("component", "shop_source"))
	pricer := pricing.NewEngine(shops, cfg.PricingLookupTimeout)

	hub := realtime.NewHub(logger.With("component", "realtime_hub"))
	notifier, err := a.newNotifier(hub)
	if err != nil {
		return err
	}

	bills, err := a.newBillStore(startupCtx)
	if err != nil {
		return err
	}

	a.orders = services.NewOrderService(
		orderStore,
		customerStore,
		shopperStore,
		pricer,
		notifier,
		services.OrderServiceOptions{
			Bills:          bills,
			Idempotency:    cacheProvider,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		logger.With("component", "order_service"),
	)
	discountService := services.NewDiscountService(db.NewDiscountStore(database), pricer, logger.With("component", "discount_service"))
	a.locations = services.NewLocationService(
		orderStore,
		notifier,
		cfg.LocationPingsPerSecond,
		cfg.LocationPingBurst,
		logger.With("component", "location_service"),
	)

	tokens, err := handlers.NewTokenVerifier(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	h, err := handlers.New(handlers.Dependencies{
		Config:    cfg,
		DB:        database,
		Orders:    a.orders,
		Discounts: discountService,
		Locations: a.locations,
		Shoppers:  services.NewShopperService(shopperStore, logger.With("component", "shopper_service")),
		Sockets:   hub,
		Tokens:    tokens,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h
	return nil
}

// newNotifier returns the hub itself for a single instance, or a redis relay
// that fans events out to every instance's hub.
func (a *App) newNotifier(hub *realtime.Hub) (realtime.Notifier, error) {
	if a.Config.RealtimeProvider != "redis" {
		return hub, nil
	}

	var client *redis.Client
	if provider, ok := a.CacheProvider.(*cache.RedisProvider); ok {
		client = provider.Client()
	} else {
		opts, err := redis.ParseURL(a.Config.RedisConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis connection string: %w", err)
		}
		client = redis.NewClient(opts)
		a.relayClient = client
	}

	relay := realtime.NewRedisRelay(client, hub, a.Logger.With("component", "realtime_relay"))
	ctx, cancel := context.WithCancel(context.Background())
	a.stopRelay = cancel
	a.relayDone.Add(1)
	go func() {
		defer a.relayDone.Done()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("realtime relay stopped", "error", err)
		}
	}()
	return relay, nil
}

func (a *App) newBillStore(ctx context.Context) (storage.BillStore, error) {
	cfg := a.Config
	if cfg.BillStorage == "s3" {
		store, err := storage.NewS3BillStore(ctx, storage.S3Config{
			Bucket:     cfg.S3Bucket,
			Region:     cfg.S3Region,
			Endpoint:   cfg.S3Endpoint,
			HTTPClient: observability.StorageClient(cfg.S3Endpoint, 30*time.Second),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 bill store: %w", err)
		}
		return store, nil
	}

	store, err := storage.NewLocalBillStore(cfg.BillDir, cfg.BillBaseURL)
	if err != nil {
		return nil, err
	}
	a.BillDir = store.Dir()
	return store, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.orders != nil {
		a.orders.WaitForNotifications()
	}
	if a.locations != nil {
		a.locations.WaitForNotifications()
	}
	if a.stopRelay != nil {
		a.stopRelay()
		a.relayDone.Wait()
	}
	if a.relayClient != nil {
		if err := a.relayClient.Close(); err != nil {
			a.Logger.Warn("failed to close realtime relay client", "error", err)
		}
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	observability.FlushSentry()
	if a.logCloser != nil {
		_ = a.logCloser.Close() //nolint:errcheck
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
