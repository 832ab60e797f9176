// Package invoker implements the resilient invocation client: every outbound
// call to a backend service goes through it and comes back as either a decoded
// JSON payload or a taxonomy error, never anything else.
//
// Each invocation applies a per-attempt timeout, exponential-backoff retry for
// transport failures, an optional per-backend circuit breaker, and an optional
// outbound rate limit. A non-2xx response is terminal: the remote answered,
// so retrying would only amplify load on a struggling service.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/observability/metrics"
	"flux-tools/internal/observability/tracing"
	"flux-tools/internal/resilience/circuitbreaker"
	"flux-tools/internal/resilience/retry"
)

// maxResponseBytes caps how much of a response body is read. Extraction
// payloads for long articles stay well under this.
const maxResponseBytes = 10 << 20

// Client issues resilient JSON-over-HTTP invocations. It holds no mutable
// state between invocations and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        Config
	backoff    retry.Config
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an invocation client with the given configuration.
// breaker may be nil to disable circuit breaking; logger may be nil to use
// the default logger.
func NewClient(cfg Config, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	backoff := cfg.Backoff
	if backoff.InitialDelay <= 0 {
		backoff = retry.DefaultConfig()
	}

	return &Client{
		// The attempt context carries the timeout; the http.Client itself
		// stays unbounded.
		httpClient: &http.Client{},
		cfg:        cfg,
		backoff:    backoff,
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
	}
}

// Invoke executes the invocation described by opts against target using the
// client's default retry count and timeout.
func (c *Client) Invoke(ctx context.Context, target string, opts Options) (map[string]any, error) {
	return c.InvokeWithPolicy(ctx, target, opts, c.cfg.RetryCount, c.cfg.Timeout)
}

// InvokeWithPolicy executes the invocation with an explicit retry count and
// per-attempt timeout. retryCount is the number of additional attempts after
// the first; timeout bounds each attempt (connect + response read).
//
// Exactly one of {payload, error} is returned, and the error is always a
// taxonomy error.
func (c *Client) InvokeWithPolicy(ctx context.Context, target string, opts Options, retryCount int, timeout time.Duration) (map[string]any, error) {
	start := time.Now()

	ctx, span := tracing.StartInvocationSpan(ctx, opts.Method, target)
	defer span.End()

	if err := validateRequest(target, opts); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var body []byte
	if opts.Method != http.MethodGet && opts.Body != nil {
		var err error
		body, err = json.Marshal(opts.Body)
		if err != nil {
			verr := entity.NewValidationError(entity.CodeValidation,
				"request body is not JSON-serializable", err)
			span.RecordError(verr)
			return nil, verr
		}
	}

	host := hostOf(target)
	requestID := uuid.New().String()
	if retryCount < 0 {
		retryCount = 0
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	backoff := c.backoff
	backoff.MaxAttempts = retryCount + 1

	var payload map[string]any
	err := retry.WithBackoff(ctx, backoff, func(attempt int) error {
		if attempt > 1 {
			metrics.RecordInvocationRetry(host)
		}
		p, aerr := c.attempt(ctx, target, opts, body, requestID, timeout, host)
		if aerr != nil {
			return aerr
		}
		payload = p
		return nil
	})

	if err != nil {
		// The retry loop can surface raw context errors when the caller
		// abandons the operation; everything leaving this function is a
		// taxonomy error.
		if !entity.IsTagged(err) {
			code := entity.CodeNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				code = entity.CodeTimeout
			}
			err = entity.NewNetworkError(code, "invocation aborted", err)
		}
		span.RecordError(err)
		metrics.RecordInvocation(host, entity.CodeOf(err), time.Since(start))
		c.logger.Warn("invocation failed",
			slog.String("request_id", requestID),
			slog.String("target", target),
			slog.String("method", opts.Method),
			slog.String("code", entity.CodeOf(err)),
			slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	metrics.RecordInvocation(host, "success", time.Since(start))
	c.logger.Debug("invocation succeeded",
		slog.String("request_id", requestID),
		slog.String("target", target),
		slog.String("method", opts.Method),
		slog.Duration("elapsed", time.Since(start)))
	return payload, nil
}

// attempt executes a single bounded network attempt, optionally through the
// circuit breaker.
func (c *Client) attempt(ctx context.Context, target string, opts Options, body []byte, requestID string, timeout time.Duration, host string) (map[string]any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.breaker == nil {
		return c.doAttempt(ctx, target, opts, body, requestID, timeout, host)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doAttempt(ctx, target, opts, body, requestID, timeout, host)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, entity.NewServiceError(entity.CodeService,
				fmt.Sprintf("circuit breaker %q rejected the call", c.breaker.Name()), err)
		}
		return nil, err
	}
	return result.(map[string]any), nil
}

// doAttempt builds, sends, and decodes one HTTP request within its own
// timeout. Failure classification:
//   - caller abandoned the operation: raw context error (aborts the retry loop)
//   - attempt exceeded its timeout: NetworkError TIMEOUT (retried)
//   - connection-level failure: NetworkError NETWORK_ERROR (retried)
//   - non-2xx status: ServiceError HTTP_<status> (terminal)
//   - undecodable success body: ServiceError SERVICE_ERROR (terminal)
func (c *Client) doAttempt(ctx context.Context, target string, opts Options, body []byte, requestID string, timeout time.Duration, host string) (map[string]any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, opts.Method, target, reader)
	if err != nil {
		return nil, entity.NewValidationError(entity.CodeValidation, "failed to build request", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, err, timeout, host)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.classifyTransportError(ctx, attemptCtx, err, timeout, host)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := &RemoteError{Status: resp.StatusCode}
		// A non-JSON error body is fine; the status code alone is enough.
		_ = json.Unmarshal(data, &remote.Payload)
		metrics.RecordInvocationAttempt(host, "http_error")
		return nil, entity.NewServiceError(entity.HTTPStatusCode(resp.StatusCode),
			"backend returned failure status", remote)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.RecordInvocationAttempt(host, "http_error")
		return nil, entity.NewServiceError(entity.CodeService,
			"backend returned an undecodable success body", err)
	}

	metrics.RecordInvocationAttempt(host, "success")
	return payload, nil
}

// classifyTransportError distinguishes caller abandonment from a per-attempt
// timeout from a connection-level failure.
func (c *Client) classifyTransportError(ctx, attemptCtx context.Context, err error, timeout time.Duration, host string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		metrics.RecordInvocationAttempt(host, "timeout")
		return entity.NewNetworkError(entity.CodeTimeout,
			fmt.Sprintf("attempt exceeded %v", timeout), err)
	}
	metrics.RecordInvocationAttempt(host, "network_error")
	return entity.NewNetworkError(entity.CodeNetwork, "request failed", err)
}

// hostOf extracts the host for metric labels; label cardinality stays bounded
// by the set of configured backends.
func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
