package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affiliate-platform/internal/auth"
	"affiliate-platform/internal/config"
	"affiliate-platform/internal/database"
	"affiliate-platform/internal/handlers"
	"affiliate-platform/internal/jobs"
	"affiliate-platform/internal/logger"
	"affiliate-platform/internal/repository"
	"affiliate-platform/internal/services"
	"affiliate-platform/internal/storage"
	"affiliate-platform/internal/telegram"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	auth.InitJWT(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Connect to database
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db, log); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo := repository.NewRepository(db)

	// Postgres exposes get_all_user_ids(); SQLite has no stored procedures
	var directory services.UserDirectory
	if cfg.Database.Driver == "sqlite" {
		directory = repository.NewReferralTableDirectory(db)
	} else {
		directory = repository.NewStoredProcedureDirectory(db)
	}

	// Initialize services
	referralService := services.NewReferralService(repo, log)
	notificationService := services.NewNotificationService(repo, directory, log)

	if cfg.Telegram.Enabled() {
		notifier, err := telegram.NewLeadNotifier(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID)
		if err != nil {
			log.WithError(err).Warn("Telegram lead alerts disabled")
		} else {
			referralService.WithLeadNotifier(notifier)
			log.Info("Telegram lead alerts enabled")
		}
	}

	var store storage.ObjectStore
	if cfg.Storage.Enabled() {
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to configure object storage: %v", err)
		}
		store = s3Store
		log.WithField("bucket", cfg.Storage.Bucket).Info("object storage enabled")
	}

	// Retry broadcasts that were stored but not fanned out
	deliveryJob := jobs.NewBroadcastDeliveryJob(
		notificationService,
		cfg.Jobs.RedeliveryInterval,
		cfg.Jobs.RedeliveryMinAge,
		log,
	)
	if err := deliveryJob.Start(); err != nil {
		log.Fatalf("Failed to start broadcast delivery job: %v", err)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Referrals:      handlers.NewReferralHandler(referralService, log),
		Notifications:  handlers.NewNotificationHandler(notificationService, log),
		Admin:          handlers.NewAdminHandler(notificationService, referralService, store, log),
		AdminPolicy:    auth.NewAdminPolicy(cfg.Auth.AdminUserIDs),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WebhookSecret:  cfg.Auth.WebhookSecret,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if err := deliveryJob.Stop(); err != nil {
		log.WithError(err).Warn("broadcast delivery job did not stop cleanly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("Server exited")
}
