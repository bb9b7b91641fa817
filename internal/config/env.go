package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if target := os.Getenv("INFERLOAD_URL"); target != "" {
		cfg.Target.URL = target
	}

	if timeout := os.Getenv("INFERLOAD_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Target.Timeout = d
		}
	}

	if logLevel := os.Getenv("INFERLOAD_LOG_LEVEL"); logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.Log.Format = GetEnvOrDefault("INFERLOAD_LOG_FORMAT", cfg.Log.Format)

	if capacity := os.Getenv("INFERLOAD_CONCURRENCY_CAP"); capacity != "" {
		if n, err := strconv.Atoi(capacity); err == nil {
			cfg.ConcurrencyCap = n
		}
	}

	// Report sinks
	cfg.Report.Dir = GetEnvOrDefault("INFERLOAD_REPORT_DIR", cfg.Report.Dir)
	cfg.Report.S3.Bucket = GetEnvOrDefault("INFERLOAD_S3_BUCKET", cfg.Report.S3.Bucket)
	cfg.Report.S3.Endpoint = GetEnvOrDefault("INFERLOAD_S3_ENDPOINT", cfg.Report.S3.Endpoint)
	cfg.Report.S3.AccessKey = GetEnvOrDefault("INFERLOAD_S3_ACCESS_KEY", cfg.Report.S3.AccessKey)
	cfg.Report.S3.SecretKey = GetEnvOrDefault("INFERLOAD_S3_SECRET_KEY", cfg.Report.S3.SecretKey)
	cfg.Report.PostgresDSN = GetEnvOrDefault("INFERLOAD_POSTGRES_DSN", cfg.Report.PostgresDSN)

	cfg.MetricsAddr = GetEnvOrDefault("INFERLOAD_METRICS_ADDR", cfg.MetricsAddr)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
