package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/impactlens/social-pulse/internal/config"
	"github.com/impactlens/social-pulse/internal/logger"
	"github.com/impactlens/social-pulse/internal/store"
)

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	records, err := store.New(cfg.StoreAddr, cfg.ResultsIndex, log)
	if err != nil {
		log.Error("init record store", slog.Any("err", err))
		os.Exit(1)
	}

	// The store may come up after us; retry the first ping with capped
	// exponential backoff before giving up.
	backoff := retry.WithMaxRetries(10, retry.WithCappedDuration(30*time.Second, retry.NewExponential(2*time.Second)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := records.Ping(pingCtx); err != nil {
			log.Warn("record store ping failed, retrying", slog.Any("err", err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to connect to record store after retries", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("connected to record store")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	// Run immediately on start, but don't fail if the store is
	// temporarily unavailable.
	runOnce(ctx, log, records, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, records, cfg)
		}
	}
}

func runOnce(ctx context.Context, log *slog.Logger, records *store.Client, cfg *config.Retention) {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := records.DeleteOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return
	}

	if deleted > 0 {
		log.Info("retention run completed", slog.Int64("deleted", deleted))
	} else {
		log.Debug("retention run completed, no old records found")
	}
}
