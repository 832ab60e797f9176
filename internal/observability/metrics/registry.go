// Package metrics provides centralized Prometheus metrics for the tool host.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Invocation metrics track outbound calls made through the resilient client
var (
	// InvocationAttemptsTotal counts individual network attempts by target host and outcome
	InvocationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invocation_attempts_total",
			Help: "Total number of outbound invocation attempts",
		},
		[]string{"host", "outcome"},
	)

	// InvocationDuration measures end-to-end invocation duration in seconds,
	// including retries and backoff delays
	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invocation_duration_seconds",
			Help:    "Outbound invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host", "outcome"},
	)

	// InvocationRetriesTotal counts retries by target host
	InvocationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invocation_retries_total",
			Help: "Total number of invocation retries after a failed attempt",
		},
		[]string{"host"},
	)
)

// Registry metrics track provider registration and tool routing
var (
	// ProvidersRegistered tracks the number of currently registered providers
	ProvidersRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "providers_registered",
			Help: "Number of providers currently registered with the host",
		},
	)

	// ToolCallsTotal counts tool invocations by provider, tool, and status
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool invocations routed through the registry",
		},
		[]string{"provider", "tool", "status"},
	)

	// ToolCallDuration measures tool invocation duration in seconds
	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tool_call_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "tool"},
	)

	// ProviderListingFailuresTotal counts tool-listing failures tolerated
	// during aggregate discovery
	ProviderListingFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_listing_failures_total",
			Help: "Total number of provider tool-listing failures during discovery",
		},
		[]string{"provider"},
	)
)

// RecordInvocationAttempt records one network attempt with its outcome
// ("success", "network_error", "timeout", or "http_error").
func RecordInvocationAttempt(host, outcome string) {
	InvocationAttemptsTotal.WithLabelValues(host, outcome).Inc()
}

// RecordInvocation records a completed invocation with total duration.
func RecordInvocation(host, outcome string, duration time.Duration) {
	InvocationDuration.WithLabelValues(host, outcome).Observe(duration.Seconds())
}

// RecordInvocationRetry records one retry against the host.
func RecordInvocationRetry(host string) {
	InvocationRetriesTotal.WithLabelValues(host).Inc()
}

// RecordToolCall records a routed tool invocation with its status
// ("success" or the taxonomy error code).
func RecordToolCall(provider, tool, status string) {
	ToolCallsTotal.WithLabelValues(provider, tool, status).Inc()
}

// RecordToolCallDuration records the duration of a routed tool invocation.
func RecordToolCallDuration(provider, tool string, duration time.Duration) {
	ToolCallDuration.WithLabelValues(provider, tool).Observe(duration.Seconds())
}

// RecordProviderListingFailure records a tolerated listing failure during
// aggregate discovery.
func RecordProviderListingFailure(provider string) {
	ProviderListingFailuresTotal.WithLabelValues(provider).Inc()
}

// SetProvidersRegistered updates the registered-provider gauge.
func SetProvidersRegistered(count int) {
	ProvidersRegistered.Set(float64(count))
}
