// Package resilience provides reliability and fault tolerance patterns for the application.
// It includes implementations of circuit breakers and retry logic to keep remote
// tool invocations from cascading failures across the host.
//
// The package supports:
//   - Circuit breakers for backend service calls (content extraction, pattern execution)
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ExtractorConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callBackendService()
//	})
//
//	retryConfig := retry.DefaultConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func(attempt int) error {
//	    return performOperation()
//	})
package resilience
