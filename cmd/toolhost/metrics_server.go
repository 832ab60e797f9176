package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProviderHealthResponse represents the health status of all registered
// provider backends.
type ProviderHealthResponse struct {
	Healthy   bool             `json:"healthy"`
	Providers []ProviderStatus `json:"providers"`
}

// ProviderStatus represents the status of a single provider backend.
type ProviderStatus struct {
	Name               string `json:"name"`
	Kind               string `json:"kind"`
	CircuitBreaker     string `json:"circuit_breaker"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open"`
}

// startMetricsServer starts the Prometheus metrics HTTP server on the given
// port. It runs in a background goroutine; when ctx is canceled the server
// shuts down gracefully and the returned channel is closed.
//
// Endpoints:
//   - GET /metrics - Prometheus metrics endpoint
//   - GET /health - liveness probe (always 200 OK)
//   - GET /health/providers - provider backend health with breaker state
func startMetricsServer(ctx context.Context, logger *slog.Logger, port int, backends []backendStatus) <-chan struct{} {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/providers", providerHealthHandler(backends))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan struct{})

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return done
}

// healthHandler handles GET /health requests (liveness probe).
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// providerHealthHandler creates a handler for GET /health/providers
// (readiness probe). Returns 200 OK while every backend's circuit breaker is
// closed, 503 Service Unavailable once any breaker opens.
func providerHealthHandler(backends []backendStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := make([]ProviderStatus, 0, len(backends))
		healthy := true

		for _, b := range backends {
			open := b.breaker.IsOpen()
			providers = append(providers, ProviderStatus{
				Name:               b.name,
				Kind:               b.kind,
				CircuitBreaker:     b.breaker.State().String(),
				CircuitBreakerOpen: open,
			})
			if open {
				healthy = false
			}
		}

		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(ProviderHealthResponse{
			Healthy:   healthy,
			Providers: providers,
		})
	}
}
