package invoker

import (
	"time"

	"flux-tools/internal/resilience/retry"
	"flux-tools/pkg/config"
)

// Default invocation policy. Per-call overrides go through InvokeWithPolicy.
const (
	// DefaultTimeout bounds a single attempt (connect + response read).
	DefaultTimeout = 10 * time.Second

	// DefaultRetryCount is the number of additional attempts after the first.
	DefaultRetryCount = 3

	// DefaultRatePerSecond limits outbound request rate per backend.
	DefaultRatePerSecond = 10.0

	// DefaultBurst is the rate limiter burst size.
	DefaultBurst = 5
)

// Config holds the invocation client configuration.
type Config struct {
	// Timeout bounds each individual attempt
	Timeout time.Duration

	// RetryCount is the number of additional attempts after the first failure
	RetryCount int

	// RatePerSecond limits outbound requests per second (0 disables limiting)
	RatePerSecond float64

	// Burst is the rate limiter burst size
	Burst int

	// Backoff is the retry delay schedule. The zero value selects the
	// default 1s/2s/4s schedule; tests inject a faster one.
	Backoff retry.Config
}

// DefaultConfig returns the default invocation client configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		RetryCount:    DefaultRetryCount,
		RatePerSecond: DefaultRatePerSecond,
		Burst:         DefaultBurst,
	}
}

// LoadConfig reads the invocation client configuration from environment
// variables, falling back to defaults on missing or invalid values.
//
// Environment variables:
//   - INVOKER_TIMEOUT: per-attempt timeout (e.g. "10s")
//   - INVOKER_RETRY_COUNT: additional attempts after the first failure
//   - INVOKER_RATE_PER_SECOND: outbound request rate limit (0 disables)
//   - INVOKER_BURST: rate limiter burst size
func LoadConfig() Config {
	cfg := Config{
		Timeout:       config.GetEnvDuration("INVOKER_TIMEOUT", DefaultTimeout),
		RetryCount:    config.GetEnvInt("INVOKER_RETRY_COUNT", DefaultRetryCount),
		RatePerSecond: config.GetEnvFloat("INVOKER_RATE_PER_SECOND", DefaultRatePerSecond),
		Burst:         config.GetEnvInt("INVOKER_BURST", DefaultBurst),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.Burst < 1 {
		cfg.Burst = DefaultBurst
	}
	return cfg
}
