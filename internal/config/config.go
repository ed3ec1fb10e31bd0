package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	// Platform-default object storage. Tenants may override per company
	// through a storage connection row.
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
	MinIORegion    string
	PublicBaseURL  string

	// Local filesystem backend.
	LocalStorageRoot    string
	LocalStorageBaseURL string

	// Marker compiler.
	CompilerPath     string
	CompilerTimeout  time.Duration
	MaxFeaturePoints int

	// Frame extraction toolchain.
	FFmpegPath   string
	FFprobePath  string
	FrameTimeout time.Duration

	TempDir string

	// Task retry policy.
	MaxAttempts       int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	JobTimeout        time.Duration

	// Lane concurrency.
	MarkerConcurrency       int
	NotificationConcurrency int
	DefaultConcurrency      int

	// Periodic sweeps.
	ExpirationLookahead     time.Duration
	NotificationCooldown    time.Duration
	ExpirationSweepInterval time.Duration
	DeactivationInterval    time.Duration
	RotationSweepInterval   time.Duration

	// Notification channels.
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFromAddress string
	SMTPFromName    string

	MetricsPort int

	TracingEnabled  bool
	OTLPEndpoint    string
	TraceSampleRate float64
}

func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg.MinIOEndpoint = os.Getenv("MINIO_ENDPOINT")
	cfg.MinIOAccessKey = os.Getenv("MINIO_ACCESS_KEY")
	cfg.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	cfg.MinIOBucket = getEnvString("MINIO_BUCKET", "ar-content")
	cfg.MinIOUseSSL = getEnvBool("MINIO_USE_SSL", false)
	cfg.MinIORegion = getEnvString("MINIO_REGION", "us-east-1")
	cfg.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", "")

	cfg.LocalStorageRoot = getEnvString("LOCAL_STORAGE_ROOT", "/var/lib/arv/storage")
	cfg.LocalStorageBaseURL = getEnvString("LOCAL_STORAGE_BASE_URL", "http://localhost:8080/media")

	cfg.CompilerPath = getEnvString("MARKER_COMPILER_PATH", "arv-marker-compiler")
	cfg.CompilerTimeout, err = getEnvDuration("MARKER_COMPILER_TIMEOUT", "5m")
	if err != nil {
		return nil, fmt.Errorf("invalid MARKER_COMPILER_TIMEOUT: %w", err)
	}
	cfg.MaxFeaturePoints = getEnvInt("MARKER_MAX_FEATURE_POINTS", 1000)

	cfg.FFmpegPath = getEnvString("FFMPEG_PATH", "ffmpeg")
	cfg.FFprobePath = getEnvString("FFPROBE_PATH", "ffprobe")
	cfg.FrameTimeout, err = getEnvDuration("FRAME_EXTRACTION_TIMEOUT", "2m")
	if err != nil {
		return nil, fmt.Errorf("invalid FRAME_EXTRACTION_TIMEOUT: %w", err)
	}

	cfg.TempDir = getEnvString("TEMP_DIR", os.TempDir())

	cfg.MaxAttempts = getEnvInt("MAX_ATTEMPTS", 3)
	cfg.RetryInitialDelay, err = getEnvDuration("RETRY_INITIAL_DELAY", "30s")
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_INITIAL_DELAY: %w", err)
	}
	cfg.RetryMaxDelay, err = getEnvDuration("RETRY_MAX_DELAY", "10m")
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_MAX_DELAY: %w", err)
	}
	cfg.JobTimeout, err = getEnvDuration("JOB_TIMEOUT", "15m")
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
	}

	cfg.MarkerConcurrency = getEnvInt("MARKER_CONCURRENCY", 2)
	cfg.NotificationConcurrency = getEnvInt("NOTIFICATION_CONCURRENCY", 2)
	cfg.DefaultConcurrency = getEnvInt("DEFAULT_CONCURRENCY", 4)

	cfg.ExpirationLookahead, err = getEnvDuration("EXPIRATION_LOOKAHEAD", "168h")
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRATION_LOOKAHEAD: %w", err)
	}
	cfg.NotificationCooldown, err = getEnvDuration("NOTIFICATION_COOLDOWN", "24h")
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFICATION_COOLDOWN: %w", err)
	}
	cfg.ExpirationSweepInterval, err = getEnvDuration("EXPIRATION_SWEEP_INTERVAL", "1h")
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRATION_SWEEP_INTERVAL: %w", err)
	}
	cfg.DeactivationInterval, err = getEnvDuration("DEACTIVATION_SWEEP_INTERVAL", "24h")
	if err != nil {
		return nil, fmt.Errorf("invalid DEACTIVATION_SWEEP_INTERVAL: %w", err)
	}
	cfg.RotationSweepInterval, err = getEnvDuration("ROTATION_SWEEP_INTERVAL", "1m")
	if err != nil {
		return nil, fmt.Errorf("invalid ROTATION_SWEEP_INTERVAL: %w", err)
	}

	cfg.SMTPHost = getEnvString("SMTP_HOST", "localhost")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 1025)
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFromAddress = getEnvString("SMTP_FROM_ADDRESS", "noreply@arvision.local")
	cfg.SMTPFromName = getEnvString("SMTP_FROM_NAME", "AR Vision")

	cfg.MetricsPort = getEnvInt("METRICS_PORT", 9090)

	cfg.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.OTLPEndpoint = getEnvString("OTLP_ENDPOINT", "localhost:4317")
	cfg.TraceSampleRate = getEnvFloat("TRACE_SAMPLE_RATE", 0.1)

	cfg.Environment = getEnvString("ENVIRONMENT", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("invalid max attempts: %d", c.MaxAttempts)
	}

	if c.MarkerConcurrency < 1 || c.NotificationConcurrency < 1 || c.DefaultConcurrency < 1 {
		return fmt.Errorf("lane concurrency must be at least 1")
	}

	if c.MaxFeaturePoints < 1 {
		return fmt.Errorf("invalid max feature points: %d", c.MaxFeaturePoints)
	}

	if c.RetryInitialDelay <= 0 || c.RetryMaxDelay < c.RetryInitialDelay {
		return fmt.Errorf("invalid retry delay bounds: initial=%s max=%s", c.RetryInitialDelay, c.RetryMaxDelay)
	}

	if c.ExpirationLookahead <= 0 || c.NotificationCooldown <= 0 {
		return fmt.Errorf("expiration lookahead and notification cooldown must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return time.ParseDuration(value)
}
