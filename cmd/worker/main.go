package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/broker"
	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"
	jqworker "github.com/abdul-hamid-achik/job-queue/pkg/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fegerV/ARV-sub005/internal/config"
	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/extproc"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/notify"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
	"github.com/fegerV/ARV-sub005/internal/sweep"
	"github.com/fegerV/ARV-sub005/internal/tracing"
	arvworker "github.com/fegerV/ARV-sub005/internal/worker"
)

// brokerAdapter maps the lane-aware enqueue contract onto the redis streams
// broker. The lane rides on the job's queue field.
type brokerAdapter struct {
	broker *broker.RedisStreamsBroker
}

func (a *brokerAdapter) Enqueue(ctx context.Context, lane queue.Lane, taskKind string, payload any) (string, error) {
	j, err := job.New(taskKind, payload)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	j.Queue = string(lane)
	if err := a.broker.Enqueue(ctx, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

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
	log.Info("configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, &tracing.Config{
		ServiceName:    "arvision-worker",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	zerologger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	log.Info("connecting to database")
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := db.New(pool)
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info("database connected")

	defaultProvider, err := buildDefaultProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create default storage: %w", err)
	}
	log.Info("default storage ready", "kind", string(defaultProvider.Kind()))

	factory := storage.NewFactory(defaultProvider, func(p storage.Provider) storage.Provider {
		return metrics.NewInstrumentedProvider(p)
	})

	log.Info("connecting to redis")
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
		broker.WithWorkerID(fmt.Sprintf("worker-%d", os.Getpid())),
	)
	log.Info("broker initialized")

	deps := &arvworker.Dependencies{
		Queries:   store,
		Providers: factory,
		Compiler:  extproc.NewMarkerCompiler(cfg.CompilerPath, cfg.CompilerTimeout, cfg.MaxFeaturePoints),
		Frames:    extproc.NewFrameExtractor(cfg.FFmpegPath, cfg.FFprobePath, cfg.FrameTimeout),
		Dispatcher: notify.NewDispatcher(
			notify.NewSMTPSender(cfg),
			notify.NewHTTPWebhookSender(),
		),
		Broker:  &brokerAdapter{broker: b},
		TempDir: cfg.TempDir,
		NewRetryPolicy: arvworker.DefaultRetryPolicy(
			cfg.RetryInitialDelay, cfg.RetryMaxDelay, cfg.MaxAttempts),
	}

	deps.Sweeper = &sweep.Sweeper{
		Queries:   store,
		Enqueue:   deps,
		Lookahead: cfg.ExpirationLookahead,
		Cooldown:  cfg.NotificationCooldown,
	}

	log.Info("registering job handlers")
	registry := jqworker.NewRegistry()
	_ = registry.Register(queue.TaskMarkerGenerate, arvworker.MarkerGenerateHandler(deps))
	_ = registry.Register(queue.TaskContentThumbnails, arvworker.ContentThumbnailHandler(deps))
	_ = registry.Register(queue.TaskVideoThumbnails, arvworker.VideoThumbnailHandler(deps))
	_ = registry.Register(queue.TaskNotificationSend, arvworker.NotificationHandler(deps))
	_ = registry.Register(queue.TaskExpirationSweep, arvworker.ExpirationSweepHandler(deps))
	_ = registry.Register(queue.TaskDeactivationSweep, arvworker.DeactivationSweepHandler(deps))
	_ = registry.Register(queue.TaskVideoRotationSweep, arvworker.RotationSweepHandler(deps))
	log.Info("handlers registered", "count", len(registry.Types()))

	registry.Use(
		middleware.RecoveryMiddleware(zerologger),
		middleware.LoggingMiddleware(zerologger),
		middleware.TimeoutMiddleware(cfg.JobTimeout),
		middleware.MetricsMiddleware(metrics.NewPrometheusCollector()),
	)

	// One pool per lane keeps slow marker compilations from starving
	// notification delivery.
	laneConcurrency := map[queue.Lane]int{
		queue.LaneMarkers:       cfg.MarkerConcurrency,
		queue.LaneNotifications: cfg.NotificationConcurrency,
		queue.LaneDefault:       cfg.DefaultConcurrency,
	}

	pools := make([]*jqworker.Pool, 0, len(laneConcurrency))
	for _, lane := range queue.Lanes() {
		concurrency := laneConcurrency[lane]
		log.Info("creating worker pool", "lane", string(lane), "concurrency", concurrency)
		pools = append(pools, jqworker.NewPool(b, registry,
			jqworker.WithConcurrency(concurrency),
			jqworker.WithPoolQueues([]string{string(lane)}),
			jqworker.WithPoolPollInterval(time.Second),
			jqworker.WithShutdownTimeout(30*time.Second),
			jqworker.WithPoolLogger(zerologger),
		))
	}

	metricsServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
		Handler: metricsHandler(store),
	}
	go func() {
		log.Info("metrics server starting", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	metrics.AppUp.Set(1)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	poolErr := make(chan error, len(pools))
	for _, p := range pools {
		p := p
		go func() {
			poolErr <- p.Start(ctx)
		}()
	}
	log.Info("worker pools started", "pools", len(pools))

	select {
	case err := <-poolErr:
		if err != nil && err != context.Canceled {
			return fmt.Errorf("worker pool error: %w", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, p := range pools {
		if err := p.Stop(shutdownCtx); err != nil {
			log.Error("error stopping pool", "error", err)
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping metrics server", "error", err)
	}
	cancel()

	log.Info("worker stopped gracefully")
	return nil
}

func buildDefaultProvider(ctx context.Context, cfg *config.Config) (storage.Provider, error) {
	if cfg.MinIOEndpoint != "" {
		p, err := storage.NewMinIOProvider(&storage.MinIOConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Bucket:        cfg.MinIOBucket,
			UseSSL:        cfg.MinIOUseSSL,
			Region:        cfg.MinIORegion,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := p.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}

	p := storage.NewLocalProvider(cfg.LocalStorageRoot, cfg.LocalStorageBaseURL)
	if err := p.TestConnection(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func metricsHandler(store *db.Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
