package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/qoe-boost/backend/internal/auth"
	"github.com/qoe-boost/backend/internal/config"
	"github.com/qoe-boost/backend/internal/handler"
	"github.com/qoe-boost/backend/internal/integrations/carrierreg"
	"github.com/qoe-boost/backend/internal/middleware"
	"github.com/qoe-boost/backend/internal/service"
	"github.com/qoe-boost/backend/internal/storage"
	"github.com/qoe-boost/backend/internal/utils/email"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration (.env is optional)
	_ = godotenv.Load()
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Probe the durable store once; fall back to the in-memory store if it
	// is unreachable. The decision holds for the whole process lifetime.
	store := storage.Open(cfg.DBConn, logger)
	defer store.Close()

	// Initialize layers
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	svc := service.NewService(store, tokens, logger)
	if cfg.SMTPConfigured() {
		svc.WithMailer(email.NewSender(cfg, logger))
	}

	var registry *carrierreg.Client
	if cfg.CarrierFeedURL != "" {
		registry = carrierreg.NewClient(cfg.CarrierFeedURL, logger)
		if err := registry.Refresh(); err != nil {
			logger.Warnf("Initial carrier registry refresh failed: %v", err)
		}
		svc.WithCarrierRegistry(registry)
	}

	h := handler.NewHandler(svc, registry)

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/recommendations", h.Recommendations).Methods("GET")
	r.HandleFunc("/providers", h.Providers).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(middleware.RequireAuth(svc))
	authRouter.HandleFunc("/me", h.Me).Methods("GET")
	// Telemetry routes accept an optional bearer token
	telemetryRouter := r.PathPrefix("/").Subrouter()
	telemetryRouter.Use(middleware.OptionalAuth(svc))
	telemetryRouter.HandleFunc("/feedback", h.CreateFeedback).Methods("POST")
	telemetryRouter.HandleFunc("/feedback", h.ListFeedback).Methods("GET")
	telemetryRouter.HandleFunc("/network-logs", h.CreateNetworkLog).Methods("POST")
	telemetryRouter.HandleFunc("/network-logs", h.ListNetworkLogs).Methods("GET")

	// Periodic jobs: storage digest and carrier registry refresh
	scheduler := cron.New()
	digestSpec := fmt.Sprintf("@every %s", cfg.DigestInterval)
	if _, err := scheduler.AddFunc(digestSpec, svc.Digest); err != nil {
		logger.Fatalf("Failed to schedule storage digest: %v", err)
	}
	if registry != nil {
		if _, err := scheduler.AddFunc("@every 6h", func() {
			if err := registry.Refresh(); err != nil {
				logger.Warnf("Carrier registry refresh failed: %v", err)
			}
		}); err != nil {
			logger.Fatalf("Failed to schedule carrier registry refresh: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s (storage: %s)", addr, store.Mode())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
