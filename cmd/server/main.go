package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storeops/be-inspections/internal/auth"
	"github.com/storeops/be-inspections/internal/client"
	"github.com/storeops/be-inspections/internal/config"
	"github.com/storeops/be-inspections/internal/database"
	"github.com/storeops/be-inspections/internal/draft"
	"github.com/storeops/be-inspections/internal/handler"
	"github.com/storeops/be-inspections/internal/inspection"
	"github.com/storeops/be-inspections/internal/logger"
	"github.com/storeops/be-inspections/internal/middleware"
	"github.com/storeops/be-inspections/internal/natsclient"
	"github.com/storeops/be-inspections/internal/repository"
	"github.com/storeops/be-inspections/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Store Inspections Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	taxonomyRepo := repository.NewTaxonomyRepository(db)
	inspectionRepo := repository.NewInspectionRepository(db)

	// Initialize NATS event publisher (optional; the publisher is nil-safe)
	var events *client.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := natsclient.Connect(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, events disabled")
		} else {
			defer nc.Close()
			events = client.NewEventPublisher(nc, log.Logger)
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS event publisher initialized")
		}
	}

	// Initialize draft store for in-progress inspection state
	drafts, err := draft.NewFileStore(cfg.Draft.Dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Draft.Dir).Msg("Failed to open draft store")
	}
	defer drafts.Close()

	// Initialize services
	taxonomyService := service.NewTaxonomyService(taxonomyRepo, log)
	inspectionService := service.NewInspectionService(inspectionRepo, events, log)

	// Initialize the inspection session and restore any persisted draft.
	// A failed taxonomy fetch is surfaced but not fatal: the session stays
	// uninitialized and the client retries via reset.
	session := inspection.NewSession(taxonomyService, drafts, log.Logger)
	if err := session.Initialize(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to initialize inspection session")
	}

	// Initialize admin auth
	authMgr := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AdminUser, cfg.Auth.AdminPassword, cfg.Auth.TokenTTL)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(session, taxonomyService, inspectionService, authMgr, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Public routes
	mux.HandleFunc("/api/v1/auth/login", httpHandler.Login)
	mux.HandleFunc("/api/v1/checklist", httpHandler.GetChecklist)
	mux.HandleFunc("/api/v1/session", httpHandler.GetSession)
	mux.HandleFunc("/api/v1/session/store-info", httpHandler.UpdateStoreInfo)
	mux.HandleFunc("/api/v1/session/item", httpHandler.UpdateSessionItem)
	mux.HandleFunc("/api/v1/session/issues", httpHandler.GetSessionIssues)
	mux.HandleFunc("/api/v1/session/reset", httpHandler.ResetSession)
	mux.HandleFunc("/api/v1/session/submit", httpHandler.SubmitSession)

	// Admin routes
	mux.Handle("/api/v1/inspections", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.ListInspections)))
	mux.Handle("/api/v1/inspections/get", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.GetInspection)))
	mux.Handle("/api/v1/inspections/issue-status", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.UpdateIssueStatus)))
	mux.Handle("/api/v1/issues", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.ListIssues)))
	mux.Handle("/api/v1/admin/categories", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.Categories)))
	mux.Handle("/api/v1/admin/items", authMgr.RequireAdmin(http.HandlerFunc(httpHandler.Items)))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
