// Package config loads the tool host configuration: environment variables
// for the invocation and server settings, plus an optional YAML file naming
// the provider backends to register.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"flux-tools/internal/infra/invoker"
	pkgconfig "flux-tools/pkg/config"
)

// Default provider endpoints, used when no YAML file overrides them.
const (
	DefaultCrawl4AIURL = "http://localhost:8000"
	DefaultPatternsURL = "http://localhost:8100"

	DefaultMetricsPort = 9091
)

// HostConfig holds everything the toolhost binary needs to start.
type HostConfig struct {
	// Invoker is the shared invocation client configuration.
	Invoker invoker.Config

	// Providers describes the backends to register, in registration order.
	Providers []ProviderConfig

	// MetricsPort is the port the metrics/health server listens on.
	MetricsPort int

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration
}

// ProviderConfig describes one backend provider.
type ProviderConfig struct {
	// Name is the registry name. Must be unique within the file; a duplicate
	// would silently replace the earlier entry at registration time.
	Name string

	// Kind selects the adapter: "crawl4ai" or "patterns".
	Kind string

	// BaseURL is the backend's base URL.
	BaseURL string

	// RetryCount overrides the invoker default when >= 0; -1 inherits it.
	RetryCount int

	// Timeout overrides the invoker per-attempt timeout when > 0.
	Timeout time.Duration
}

// providersFile is the YAML document shape. RetryCount is a pointer so an
// omitted key inherits the invoker default instead of forcing zero retries,
// and Timeout is a string because the YAML decoder does not understand
// duration syntax like "10s".
type providersFile struct {
	Providers []struct {
		Name       string `yaml:"name"`
		Kind       string `yaml:"kind"`
		BaseURL    string `yaml:"base_url"`
		RetryCount *int   `yaml:"retry_count"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"providers"`
}

// Load builds the host configuration from environment variables, reading the
// provider list from the file named by TOOLHOST_PROVIDERS_FILE when set.
// Returns a config with defaults for anything not specified.
func Load() (*HostConfig, error) {
	cfg := &HostConfig{
		Invoker:         invoker.LoadConfig(),
		MetricsPort:     pkgconfig.GetEnvInt("TOOLHOST_METRICS_PORT", DefaultMetricsPort),
		ShutdownTimeout: pkgconfig.GetEnvDuration("TOOLHOST_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if path := os.Getenv("TOOLHOST_PROVIDERS_FILE"); path != "" {
		providers, err := LoadProvidersFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Providers = providers
	} else {
		cfg.Providers = defaultProviders()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid toolhost configuration: %w", err)
	}
	return cfg, nil
}

// LoadProvidersFile reads and validates a provider list from a YAML file.
// The path is expected to come from a trusted source (env or CLI flag).
func LoadProvidersFile(path string) ([]ProviderConfig, error) {
	// #nosec G304 -- path is provided by trusted source (env var), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("providers file %s names no providers", path)
	}

	providers := make([]ProviderConfig, len(file.Providers))
	for i, raw := range file.Providers {
		p := ProviderConfig{
			Name:       raw.Name,
			Kind:       raw.Kind,
			BaseURL:    raw.BaseURL,
			RetryCount: -1,
		}
		if p.Name == "" {
			p.Name = p.Kind
		}
		if raw.RetryCount != nil {
			p.RetryCount = *raw.RetryCount
		}
		if raw.Timeout != "" {
			d, err := time.ParseDuration(raw.Timeout)
			if err != nil {
				return nil, fmt.Errorf("provider %q: invalid timeout %q: %w", p.Name, raw.Timeout, err)
			}
			p.Timeout = d
		}
		if err := validateProvider(&p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		providers[i] = p
	}
	return providers, nil
}

func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:       "crawl4ai",
			Kind:       "crawl4ai",
			BaseURL:    pkgconfig.GetEnvString("CRAWL4AI_URL", DefaultCrawl4AIURL),
			RetryCount: -1,
		},
		{
			Name:       "patterns",
			Kind:       "patterns",
			BaseURL:    pkgconfig.GetEnvString("PATTERNS_URL", DefaultPatternsURL),
			RetryCount: -1,
		},
	}
}

// Validate checks configuration correctness.
func (c *HostConfig) Validate() error {
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("TOOLHOST_METRICS_PORT must be between 1 and 65535")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("TOOLHOST_SHUTDOWN_TIMEOUT must be positive")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if err := validateProvider(p); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider name %q is configured twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func validateProvider(p *ProviderConfig) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch p.Kind {
	case "crawl4ai", "patterns":
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", p.BaseURL)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
