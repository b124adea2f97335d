package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jafarshop/storefront/internal/api"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/mail"
	"github.com/jafarshop/storefront/internal/media"
	"github.com/jafarshop/storefront/internal/payment"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/memory"
	"github.com/jafarshop/storefront/internal/repository/postgres"
	"github.com/jafarshop/storefront/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting storefront API server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Initialize storage
	var repos *repository.Repositories
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("Using in-memory store: data is lost on restart")
		repos = memory.NewRepositories(logger)
	default:
		db, err := postgres.NewConnection(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = postgres.RunMigrations(migrateCtx, db, logger)
		cancel()
		if err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		repos = postgres.NewRepositories(db, logger)
	}

	// Payment gateway
	var gateway payment.Gateway
	if cfg.Stripe.SecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Stripe, logger)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set: using offline payment gateway")
		gateway = payment.NewOfflineGateway(cfg.Stripe.WebhookSecret, cfg.Stripe.Currency, logger)
	}

	images, err := media.New(cfg.Cloudinary, cfg.Upload.MaxFileSize, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image store", zap.Error(err))
	}

	svc := service.New(service.Deps{
		Config:  cfg,
		Repos:   repos,
		Gateway: gateway,
		Mailer:  mail.New(cfg.Email, logger),
		Images:  images,
		Effects: service.NewEffects(true, logger),
		Logger:  logger,
	})

	router := api.NewRouter(cfg, svc, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Stale pending order sweep: runs on startup, then every SweepInterval
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go svc.Orders.RunPendingSweepLoop(sweepCtx)
	logger.Info("Pending order sweep started",
		zap.Duration("interval", cfg.Checkout.SweepInterval),
		zap.Duration("ttl", cfg.Checkout.PendingOrderTTL),
	)

	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	stopSweep()

	if err := svc.Effects.Wait(ctx); err != nil {
		logger.Warn("Background tasks did not finish before shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
