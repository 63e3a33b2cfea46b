package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/campaign-dispatch/internal/api"
	"github.com/ignite/campaign-dispatch/internal/app"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	flush, err := logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		RedactPII:  cfg.Logging.Redact(),
		SentryDSN:  cfg.Logging.SentryDSN,
		Env:        cfg.Logging.Env,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer flush()

	if err := run(cfg); err != nil {
		logger.Error("[server] exited with error", "error", err)
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := dispatch.NewPool(a.Engine, dispatch.PoolConfig{
		Workers:   cfg.Dispatch.AsyncWorkers,
		QueueSize: cfg.Dispatch.AsyncQueueSize,
	})

	if a.Bounces != nil && cfg.Reconcile.BounceSyncCron != "" {
		if err := a.Bounces.Start(cfg.Reconcile.BounceSyncCron); err != nil {
			return err
		}
	}

	deps := api.Deps{
		Contacts:          a.Contacts,
		Campaigns:         a.Campaigns,
		Dispatcher:        a.Engine,
		Queue:             pool,
		Events:            a.Reconciler,
		Quota:             a.Quota,
		WebhookSigningKey: cfg.Mailgun.WebhookSigningKey,
	}
	if a.Bounces != nil {
		deps.Bounces = a.Bounces
	}
	server := api.NewServer(cfg.Server, api.NewHandlers(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("[server] listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("[server] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[server] http shutdown", "error", err)
		}
		if a.Bounces != nil {
			if err := a.Bounces.Stop(shutdownCtx); err != nil {
				logger.Warn("[server] bounce sync stop", "error", err)
			}
		}
		// queued async sends are allowed to finish
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[server] async sends still running at shutdown", "error", err)
		}
		return nil
	})
	return g.Wait()
}
