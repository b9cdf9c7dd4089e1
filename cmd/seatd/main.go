package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"seat-allocation-backend/config"
	"seat-allocation-backend/internal/api"
	"seat-allocation-backend/internal/collaborator"
	"seat-allocation-backend/internal/db"
	"seat-allocation-backend/internal/events"
	"seat-allocation-backend/internal/logging"
	"seat-allocation-backend/internal/notification"
	"seat-allocation-backend/internal/refresh"
	"seat-allocation-backend/internal/session"
	"seat-allocation-backend/internal/store"
)

var version = "dev"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Default().Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}

	logger := logging.New(cfg.Logging, version)
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.String("path", configPath), zap.String("collaborator_mode", cfg.Collaborator.Mode))

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		collab   collaborator.Collaborator
		appStore store.Store
	)
	switch cfg.Collaborator.Mode {
	case config.ModeHTTP:
		client, err := collaborator.NewClient(cfg.Collaborator, logger)
		if err != nil {
			logger.Fatal("failed to create collaborator client", zap.Error(err))
		}
		collab = client
	default:
		appStore = store.NewGormStore(gormDB, logger)
		collab = appStore
	}

	// Escalation alerts go out once per calling episode, however many staff
	// have the board open.
	var alerters []refresh.Alerter
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		alerters = append(alerters, pool)
	} else {
		logger.Warn("VAPID keys are not configured, push notifications are disabled")
	}
	if cfg.Events.Enabled {
		alerters = append(alerters, events.NewPublisher(cfg.Events.URL, cfg.Events.Queue, events.DialAMQP, logger))
	}

	sessions := session.NewManager(collab, session.Options{
		TTL:      cfg.Session.TTL,
		DraftTTL: cfg.Session.DraftTTL,
		Refresh: refresh.Options{
			Interval: cfg.Refresh.Interval,
			Tick:     cfg.Refresh.Tick,
			Alerters: alerters,
			Gate:     refresh.NewGate(24 * time.Hour),
		},
	}, logger)
	defer sessions.Close()

	handler := api.NewHandler(collab, sessions, gormDB, webpushOptions, logger)
	router := api.NewRouter(handler, cfg.Server)
	if appStore != nil {
		api.RegisterCollaborator(router.Group("/collab/v1"), appStore, logger)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
