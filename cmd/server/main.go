package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/mesworks/be-doc-approvals/internal/client"
	"github.com/mesworks/be-doc-approvals/internal/config"
	"github.com/mesworks/be-doc-approvals/internal/database"
	"github.com/mesworks/be-doc-approvals/internal/handler"
	"github.com/mesworks/be-doc-approvals/internal/logger"
	"github.com/mesworks/be-doc-approvals/internal/middleware"
	"github.com/mesworks/be-doc-approvals/internal/repository"
	"github.com/mesworks/be-doc-approvals/internal/service"
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
		Msg("Starting Document Approvals Service")

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

	// Initialize NATS (optional — the service runs without a broker,
	// dropping notification events with a warn log)
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1))
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notifications disabled")
		} else {
			defer natsConn.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	notifier := client.NewNotificationPublisher(natsConn, log.Logger)

	// Initialize directory service client
	directoryClient := client.NewDirectoryClient(cfg.Directory.BaseURL)
	log.Info().Str("directory_url", cfg.Directory.BaseURL).Msg("Directory client initialized")

	// Initialize repositories
	documentRepo := repository.NewDocumentRepository(db)
	rulesRepo := repository.NewApprovalRulesRepository(db)
	requestsRepo := repository.NewApprovalRequestsRepository(db)
	auditRepo := repository.NewApprovalAuditRepository(db)

	// Initialize services
	approvalService := service.NewApprovalService(documentRepo, rulesRepo, requestsRepo, auditRepo, directoryClient, notifier, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(approvalService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Approval routes
	mux.HandleFunc("/api/v1/approvals/submit", httpHandler.SubmitForApproval)
	mux.HandleFunc("/api/v1/approvals/status", httpHandler.ChangeStatus)
	mux.HandleFunc("/api/v1/approvals/approve", httpHandler.Approve)
	mux.HandleFunc("/api/v1/approvals/reject", httpHandler.Reject)
	mux.HandleFunc("/api/v1/approvals/pending", httpHandler.ListPending)
	mux.HandleFunc("/api/v1/approvals/history", httpHandler.GetHistory)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

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
