package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flux-tools/internal/infra/invoker"
	"flux-tools/internal/infra/provider/crawl4ai"
	"flux-tools/internal/infra/provider/patterns"
	"flux-tools/internal/observability/logging"
	hostconfig "flux-tools/internal/pkg/config"
	"flux-tools/internal/resilience/circuitbreaker"
	"flux-tools/internal/usecase/tools"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	cfg, err := hostconfig.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("providers", len(cfg.Providers)),
		slog.Int("metrics_port", cfg.MetricsPort),
		slog.Duration("invoker_timeout", cfg.Invoker.Timeout),
		slog.Int("invoker_retry_count", cfg.Invoker.RetryCount))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := tools.NewRegistry(logger)
	backends := make([]backendStatus, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		backend, err := buildProvider(cfg, pc, logger)
		if err != nil {
			logger.Error("failed to build provider",
				slog.String("provider", pc.Name),
				slog.Any("error", err))
			os.Exit(1)
		}
		registry.RegisterProvider(backend.provider)
		backends = append(backends, backend)
		logger.Info("provider registered",
			slog.String("provider", pc.Name),
			slog.String("kind", pc.Kind),
			slog.String("base_url", pc.BaseURL))
	}

	serverDone := startMetricsServer(ctx, logger, cfg.MetricsPort, backends)

	logger.Info("toolhost started", slog.Any("providers", registry.ListProviders()))

	// Block until SIGINT or SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	cancel()

	select {
	case <-serverDone:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("shutdown timeout elapsed")
	}
	logger.Info("toolhost stopped")
}

// backendStatus ties a registered provider to the circuit breaker guarding
// its backend, for the /health/providers endpoint.
type backendStatus struct {
	name     string
	kind     string
	provider tools.Provider
	breaker  *circuitbreaker.CircuitBreaker
}

// buildProvider constructs one provider with its own invocation client and
// breaker preset.
func buildProvider(cfg *hostconfig.HostConfig, pc hostconfig.ProviderConfig, logger *slog.Logger) (backendStatus, error) {
	invCfg := cfg.Invoker
	if pc.RetryCount >= 0 {
		invCfg.RetryCount = pc.RetryCount
	}
	if pc.Timeout > 0 {
		invCfg.Timeout = pc.Timeout
	}

	var (
		breakerCfg circuitbreaker.Config
		build      func(baseURL string, client *invoker.Client) tools.Provider
	)
	switch pc.Kind {
	case "crawl4ai":
		breakerCfg = circuitbreaker.ExtractorConfig()
		build = func(baseURL string, client *invoker.Client) tools.Provider {
			return crawl4ai.New(baseURL, client)
		}
	case "patterns":
		breakerCfg = circuitbreaker.PatternConfig()
		build = func(baseURL string, client *invoker.Client) tools.Provider {
			return patterns.New(baseURL, client)
		}
	default:
		return backendStatus{}, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
	breakerCfg.Name = pc.Name

	breaker := circuitbreaker.New(breakerCfg)
	client := invoker.NewClient(invCfg, breaker, logger.With(slog.String("provider", pc.Name)))

	return backendStatus{
		name:     pc.Name,
		kind:     pc.Kind,
		provider: build(pc.BaseURL, client),
		breaker:  breaker,
	}, nil
}
