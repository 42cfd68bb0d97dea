package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopmate/shopmate/internal/config"
	"github.com/shopmate/shopmate/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	billDir    string
	httpServer *http.Server
}

// New builds the HTTP server. billDir, when set, is served under the
// configured bill base URL.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers, billDir string) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
		billDir:  billDir,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// The realtime hub resets deadlines on upgraded connections.
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("metrics")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found","code":"not_found"}` + "\n")) //nolint:errcheck
	})

	if s.billDir != "" {
		prefix := strings.TrimRight(s.cfg.BillBaseURL, "/") + "/"
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(s.billDir)))
		r.PathPrefix(prefix).Handler(noDirectoryListing(files)).Methods("GET").Name("bills")
	}

	// Realtime clients authenticate with the access_token query parameter.
	socket := r.PathPrefix("/ws").Subrouter()
	socket.Use(h.Authenticate)
	socket.HandleFunc("", h.Realtime).Methods("GET").Name("realtime")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(h.Authenticate)
	api.HandleFunc("/orders", h.PlaceOrder).Methods("POST").Name("orders.place")
	api.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("orders.list")
	// Must be registered before /orders/{id}.
	api.HandleFunc("/orders/available", h.ListAvailableOrders).Methods("GET").Name("orders.available")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	api.HandleFunc("/orders/{id}/accept", h.AcceptOrder).Methods("POST").Name("orders.accept")
	api.HandleFunc("/orders/{id}/transitions", h.TransitionOrder).Methods("POST").Name("orders.transition")
	api.HandleFunc("/orders/{id}/revision", h.ReviseOrder).Methods("POST").Name("orders.revision")
	api.HandleFunc("/orders/{id}/revision/approve", h.ApproveRevision).Methods("POST").Name("orders.revision.approve")
	api.HandleFunc("/orders/{id}/revision/reject", h.RejectRevision).Methods("POST").Name("orders.revision.reject")
	api.HandleFunc("/orders/{id}/bill", h.UploadBill).Methods("POST").Name("orders.bill")
	api.HandleFunc("/orders/{id}/bill/approve", h.ApproveBill).Methods("POST").Name("orders.bill.approve")
	api.HandleFunc("/orders/{id}/bill/reject", h.RejectBill).Methods("POST").Name("orders.bill.reject")
	api.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST").Name("orders.cancel")
	api.HandleFunc("/orders/{id}/rating", h.RateOrder).Methods("POST").Name("orders.rating")
	api.HandleFunc("/orders/{id}/location", h.ReportLocation).Methods("POST").Name("orders.location")
	api.HandleFunc("/shoppers/me", h.ShopperProfile).Methods("GET").Name("shoppers.me")
	api.HandleFunc("/shoppers/me", h.UpdateShopperProfile).Methods("PUT").Name("shoppers.me.update")
	api.HandleFunc("/discounts/best", h.BestDiscount).Methods("GET").Name("discounts.best")
	api.HandleFunc("/quotes", h.Quote).Methods("POST").Name("quotes")

	return r
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
