package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=16"`
	DeliveryTimeoutSec   int    `env:"DELIVERY_TIMEOUT_SEC,default=30"`
	ClaimLeaseSec        int    `env:"CLAIM_LEASE_SEC,default=60"`
	RetryScanIntervalSec int    `env:"RETRY_SCAN_INTERVAL_SEC,default=5"`
	RetryScanLimit       int    `env:"RETRY_SCAN_LIMIT,default=100"`
	JanitorIntervalSec   int    `env:"JANITOR_INTERVAL_SEC,default=600"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	RetryableStatusCodes string `env:"RETRYABLE_STATUS_CODES"`
}

// defaultRetryableStatusCodes is applied in Load rather than in the struct
// tag: go-env splits tag options on commas, so a comma-separated default
// would be truncated to its first code.
const defaultRetryableStatusCodes = "408,429"

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if strings.TrimSpace(cfg.RetryableStatusCodes) == "" {
		cfg.RetryableStatusCodes = defaultRetryableStatusCodes
	}
	return &cfg, nil
}

// ParseRetryableStatusCodes returns the configured set of 4xx status codes
// that are treated as transient instead of permanent.
func (c *Config) ParseRetryableStatusCodes() ([]int, error) {
	raw := strings.TrimSpace(c.RetryableStatusCodes)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	codes := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid retryable status code %q: %w", part, err)
		}
		if code < 400 || code > 499 {
			return nil, fmt.Errorf("retryable status code %d is outside the 4xx range", code)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
