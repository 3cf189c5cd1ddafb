// Package config loads runtime configuration for cmd/ingestd from
// environment variables (optionally sourced from a .env file via
// godotenv): a lightweight env-driven wiring with no YAML/TOML config
// file parser introduced.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every setting cmd/ingestd needs to construct its
// dependency graph. Zero-value-safe defaults come from Load, never
// from the zero value of Config itself.
type Config struct {
	// Env selects the logging handler: "dev" gets tint's colorized
	// output, anything else gets the stdlib JSON handler.
	Env string

	// StoreDriver selects the backing Store: "postgres" or "memory".
	StoreDriver string
	PostgresDSN string

	// BlobDriver selects the blob.Store backend: "local" or "s3".
	BlobDriver   string
	BlobLocalDir string
	S3Bucket     string
	S3Prefix     string
	S3Region     string

	WorkerConcurrency int
	LeaseDuration     time.Duration
	HeartbeatInterval time.Duration
	ReapInterval      time.Duration

	WebhookConcurrency int
	WebhookMaxAttempts int

	RatelimitFailClosed bool

	// IntakeWatchDir, when set, is polled for dropped documents: each
	// regular file found is submitted as a job (kind inferred from its
	// extension, tenant fixed to IntakeTenantID) and then moved into a
	// processed/ or failed/ subdirectory. Empty disables the watcher —
	// this module exposes no HTTP or other submission transport of its
	// own, so a deployment with no watch directory configured has no
	// way to ingest new documents beyond DLQ replay.
	IntakeWatchDir     string
	IntakeTenantID     string
	IntakeTier         string
	IntakePollInterval time.Duration

	CronDLQPurgeSchedule    string
	CronDLQRetention        time.Duration
	CronRateLimitSchedule   string
	CronRateLimitRetention  time.Duration
}

// Load reads Config from the process environment, applying the
// fallback given for each variable in its body below when that
// variable is unset or does not parse. Callers are expected to
// have already called godotenv.Load() (or not — a missing .env is not
// an error).
func Load() (*Config, error) {
	cfg := &Config{
		Env:         getEnv("INGESTD_ENV", "dev"),
		StoreDriver: getEnv("INGESTD_STORE_DRIVER", "memory"),
		PostgresDSN: getEnv("INGESTD_POSTGRES_DSN", ""),

		BlobDriver:   getEnv("INGESTD_BLOB_DRIVER", "local"),
		BlobLocalDir: getEnv("INGESTD_BLOB_DIR", "./data/blobs"),
		S3Bucket:     getEnv("INGESTD_S3_BUCKET", ""),
		S3Prefix:     getEnv("INGESTD_S3_PREFIX", "inspections"),
		S3Region:     getEnv("INGESTD_S3_REGION", "us-east-1"),

		WorkerConcurrency: getEnvInt("INGESTD_WORKER_CONCURRENCY", 10),
		LeaseDuration:     getEnvDuration("INGESTD_LEASE_DURATION", 5*time.Minute),
		HeartbeatInterval: getEnvDuration("INGESTD_HEARTBEAT_INTERVAL", 30*time.Second),
		ReapInterval:      getEnvDuration("INGESTD_REAP_INTERVAL", time.Minute),

		WebhookConcurrency: getEnvInt("INGESTD_WEBHOOK_CONCURRENCY", 8),
		WebhookMaxAttempts: getEnvInt("INGESTD_WEBHOOK_MAX_ATTEMPTS", 5),

		RatelimitFailClosed: getEnvBool("INGESTD_RATELIMIT_FAIL_CLOSED", false),

		IntakeWatchDir:     getEnv("INGESTD_INTAKE_WATCH_DIR", ""),
		IntakeTenantID:     getEnv("INGESTD_INTAKE_TENANT_ID", ""),
		IntakeTier:         getEnv("INGESTD_INTAKE_TIER", "free"),
		IntakePollInterval: getEnvDuration("INGESTD_INTAKE_POLL_INTERVAL", 5*time.Second),

		CronDLQPurgeSchedule:   getEnv("INGESTD_CRON_DLQ_PURGE_SCHEDULE", "@every 1h"),
		CronDLQRetention:       getEnvDuration("INGESTD_CRON_DLQ_RETENTION", 30*24*time.Hour),
		CronRateLimitSchedule:  getEnv("INGESTD_CRON_RATELIMIT_SCHEDULE", "@every 15m"),
		CronRateLimitRetention: getEnvDuration("INGESTD_CRON_RATELIMIT_RETENTION", 24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations Load cannot recover from at runtime.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: INGESTD_POSTGRES_DSN is required when INGESTD_STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unknown INGESTD_STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.BlobDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: INGESTD_S3_BUCKET is required when INGESTD_BLOB_DRIVER=s3")
		}
	default:
		return fmt.Errorf("config: unknown INGESTD_BLOB_DRIVER %q", c.BlobDriver)
	}

	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("config: INGESTD_WORKER_CONCURRENCY must be positive")
	}

	if c.IntakeWatchDir != "" && c.IntakeTenantID == "" {
		return fmt.Errorf("config: INGESTD_INTAKE_TENANT_ID is required when INGESTD_INTAKE_WATCH_DIR is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
