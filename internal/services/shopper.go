package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/db"
	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/observability"
)

type shopperProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shopper, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	SetUPIID(ctx context.Context, id uuid.UUID, upiID string) error
}

// upiPattern matches virtual payment addresses such as ravi.k@okbank.
var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)

// ShopperUpdate changes the fields a shopper manages themselves. Nil fields
// are left alone.
type ShopperUpdate struct {
	IsOnline *bool   `json:"is_online"`
	UPIID    *string `json:"upi_id"`
}

// ShopperService owns a shopper's availability and payout id.
type ShopperService struct {
	shoppers shopperProfileStore
	validate *validator.Validate
	logger   *slog.Logger
}

func NewShopperService(shoppers shopperProfileStore, logger *slog.Logger) *ShopperService {
	validate := validator.New()
	_ = validate.RegisterValidation("upi", func(fl validator.FieldLevel) bool { //nolint:errcheck
		return upiPattern.MatchString(fl.Field().String())
	})
	return &ShopperService{shoppers: shoppers, validate: validate, logger: logger}
}

// Profile returns the calling shopper's record.
func (s *ShopperService) Profile(ctx context.Context, actor Actor) (*models.Shopper, error) {
	shopper, ok := actor.(ShopperActor)
	if !ok {
		return nil, accessDenied("only shoppers have a profile")
	}
	return s.load(ctx, shopper.ID)
}

// UpdateProfile applies update for the calling shopper and returns the
// stored result.
func (s *ShopperService) UpdateProfile(ctx context.Context, actor Actor, update ShopperUpdate) (*models.Shopper, error) {
	shopper, ok := actor.(ShopperActor)
	if !ok {
		return nil, accessDenied("only shoppers update a profile")
	}
	if update.IsOnline == nil && update.UPIID == nil {
		return nil, validationError("nothing to update")
	}

	var upiID string
	if update.UPIID != nil {
		upiID = strings.TrimSpace(*update.UPIID)
		if err := s.validate.Var(upiID, "required,max=320,upi"); err != nil {
			return nil, validationError("upi_id is not a valid payment address")
		}
	}

	if update.UPIID != nil {
		if err := s.shoppers.SetUPIID(ctx, shopper.ID, upiID); err != nil {
			return nil, shopperError(shopper.ID, "set upi id", err)
		}
	}
	if update.IsOnline != nil {
		if err := s.shoppers.SetOnline(ctx, shopper.ID, *update.IsOnline); err != nil {
			return nil, shopperError(shopper.ID, "set availability", err)
		}
		status := "offline"
		if *update.IsOnline {
			status = "online"
		}
		observability.Count(ctx, "shopper.availability", "status", status)
	}

	logging.FromContext(ctx, s.logger).Info("shopper profile updated",
		"shopper_id", shopper.ID,
		"online_changed", update.IsOnline != nil,
		"upi_changed", update.UPIID != nil,
	)
	return s.load(ctx, shopper.ID)
}

// IsOnline reports whether the shopper may hear new-order broadcasts.
func (s *ShopperService) IsOnline(ctx context.Context, shopperID uuid.UUID) (bool, error) {
	shopper, err := s.load(ctx, shopperID)
	if err != nil {
		return false, err
	}
	return shopper.IsOnline, nil
}

func (s *ShopperService) load(ctx context.Context, id uuid.UUID) (*models.Shopper, error) {
	shopper, err := s.shoppers.GetByID(ctx, id)
	if err != nil {
		return nil, shopperError(id, "load shopper", err)
	}
	return shopper, nil
}

func shopperError(id uuid.UUID, op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: shopper %s", ErrNotFound, id)
	}
	return persistenceError(op, err)
}
