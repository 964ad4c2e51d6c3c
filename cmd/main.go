package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qpaygate/internal/bootstrap"
	"qpaygate/internal/checkout"
	"qpaygate/internal/config"
	cronpkg "qpaygate/internal/cron"
	"qpaygate/internal/fulfillment"
	"qpaygate/internal/gateway"
	"qpaygate/internal/lock"
	"qpaygate/internal/reconcile"
	"qpaygate/internal/repository"
	"qpaygate/internal/router"
	"qpaygate/internal/session"
	"qpaygate/internal/signer"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	if hasArg("--migrate-only") {
		logger.Info("Schema migration completed")
		return
	}

	// --- Repositories ---
	payments := repository.NewPaymentRepository(db)
	orders := repository.NewOrderRepository(db)
	creds := repository.NewCredentialRepository(db)
	settings := repository.NewSettingRepository(db)

	// --- Session store and per-payment locks (Redis with in-memory fallback) ---
	sessions, err := session.NewStore(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, cfg.Checkout.SessionTTL)
	if err != nil {
		logger.Warn("Redis unavailable for sessions, using in-memory fallback", zap.Error(err))
	}
	locks, err := lock.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, 30*time.Second)
	if err != nil {
		logger.Warn("Redis unavailable for locks, using in-memory fallback", zap.Error(err))
	}

	// --- Gateway client and core services ---
	gw := gateway.NewClient(&cfg.Gateway)
	confirmer := fulfillment.NewService(db, logger)
	engine := reconcile.NewEngine(gw, payments, confirmer, locks, logger)
	urlSigner := signer.New(cfg.Signing.Secret)
	builder := checkout.NewBuilder(urlSigner, sessions, cfg.Server.PublicURL, cfg.Checkout.FingerprintHost)
	executor := checkout.NewExecutor(
		gw, payments, orders, creds, settings, sessions,
		builder, confirmer, cfg.Server.PublicURL, logger,
	)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, db, cfg, engine, executor, gw, sessions, urlSigner, logger)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(cfg, creds, payments, settings, gw, engine.Reconcile, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting qpaygate server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
