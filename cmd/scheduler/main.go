package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/redis/go-redis/v9"

	"github.com/fegerV/ARV-sub005/internal/config"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/queue"
)

// The scheduler is a tiny binary: it ticks and drops sweep jobs onto the
// default lane. The workers do the actual scanning, so running more than
// one scheduler only costs duplicate (idempotent) sweep runs.

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	log := logger.Default()
	log.Info("scheduler starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpt)
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := broker.NewRedisStreamsBroker(redisClient,
		broker.WithWorkerID(fmt.Sprintf("scheduler-%d", os.Getpid())),
	)

	sweeps := []struct {
		kind     string
		interval time.Duration
	}{
		{queue.TaskExpirationSweep, cfg.ExpirationSweepInterval},
		{queue.TaskDeactivationSweep, cfg.DeactivationInterval},
		{queue.TaskVideoRotationSweep, cfg.RotationSweepInterval},
	}

	enqueueSweep := func(kind string) {
		j, err := job.New(kind, &queue.SweepPayload{TriggeredAt: time.Now().UTC()})
		if err != nil {
			log.Error("failed to build sweep job", "sweep", kind, "error", err)
			return
		}
		j.Queue = string(queue.RouteFor(kind))
		if err := b.Enqueue(ctx, j); err != nil {
			log.Error("failed to enqueue sweep", "sweep", kind, "error", err)
			return
		}
		metrics.JobsEnqueuedTotal.WithLabelValues(kind, j.Queue).Inc()
		log.Debug("sweep enqueued", "sweep", kind, "job_id", j.ID)
	}

	for _, s := range sweeps {
		s := s
		go func() {
			log.Info("sweep scheduled", "sweep", s.kind, "interval", s.interval.String())
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()

			// Fire once on startup so a fresh deployment does not wait
			// a full interval for its first pass.
			enqueueSweep(s.kind)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					enqueueSweep(s.kind)
				}
			}
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	log.Info("shutdown signal received", "signal", sig.String())
	cancel()

	log.Info("scheduler stopped")
	return nil
}
