package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caregaps_backend/internal/campaign/repository"
	"caregaps_backend/internal/campaign/service"
	"caregaps_backend/internal/scheduler"
	"caregaps_backend/platform/config"
	"caregaps_backend/platform/db"
	"caregaps_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	repo, err := repository.New(pool, cfg.GetWarehouseSchema())
	if err != nil {
		log.Error("failed to create repository", "error", err)
		panic("failed to create repository: " + err.Error())
	}

	svc, err := service.New(repo, repo, cfg, log)
	if err != nil {
		log.Error("failed to create campaign service", "error", err)
		panic("failed to create campaign service: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg.GetRedisURL(), cfg.GetAsynqQueueName(),
		cfg.GetAsynqConcurrency(), svc, log)
	if err != nil {
		log.Error("failed to create worker", "error", err)
		panic("failed to create worker: " + err.Error())
	}

	client, err := scheduler.NewClient(cfg.GetRedisURL(), cfg.GetAsynqQueueName())
	if err != nil {
		log.Error("failed to create scheduler client", "error", err)
		panic("failed to create scheduler client: " + err.Error())
	}
	defer client.Close()

	trigger := scheduler.NewTrigger(client, cfg.GetActiveCampaigns(), cfg.GetRunInterval(), log)
	go trigger.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down scheduler")
		worker.Shutdown()
	case err := <-errCh:
		if err != nil {
			log.Error("worker failed", "error", err)
			panic("worker failed: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
