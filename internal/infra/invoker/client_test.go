package invoker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/resilience/circuitbreaker"
	"flux-tools/internal/resilience/retry"
)

func fastBackoff() retry.Config {
	return retry.Config{
		MaxAttempts:    1, // overridden per call
		InitialDelay:   5 * time.Millisecond,
		MaxDelay:       50 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func newTestClient() *Client {
	return NewClient(Config{Timeout: time.Second, RetryCount: 3, Backoff: fastBackoff()}, nil, nil)
}

func TestInvoke_Success(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com", body["url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": {"markdown": "# Title"}, "metadata": {}}`))
	}))
	defer srv.Close()

	payload, err := newTestClient().Invoke(context.Background(), srv.URL+"/extract", Options{
		Method: "POST",
		Body:   map[string]any{"url": "https://example.com"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts))

	want := map[string]any{
		"content":  map[string]any{"markdown": "# Title"},
		"metadata": map[string]any{},
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestInvoke_RetriesTransientFailureExactly(t *testing.T) {
	// A backend that never answers the handshake: close the connection on
	// every request.
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	client := newTestClient()
	_, err := client.InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 3, time.Second)

	require.Error(t, err)
	assert.Equal(t, entity.KindNetwork, entity.KindOf(err))
	assert.Equal(t, int64(4), atomic.LoadInt64(&attempts), "expected 1 + retryCount attempts")
}

func TestInvoke_ServerErrorThenSuccess(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail": "transient failure"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	payload, err := newTestClient().InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 1, time.Second)

	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&attempts), "expected success after exactly 2 attempts")
	assert.Equal(t, true, payload["ok"])
}

func TestInvoke_ClientErrorIsTerminal(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "url field required"}`))
	}))
	defer srv.Close()

	_, err := newTestClient().InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "POST", Body: map[string]any{}}, 3, time.Second)

	require.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts), "4xx responses must not be retried")
	assert.Equal(t, "HTTP_422", entity.CodeOf(err))

	// The structured error payload survives as the cause.
	tagged, ok := entity.AsTagged(err)
	require.True(t, ok)
	var remote *RemoteError
	require.ErrorAs(t, tagged.Cause, &remote)
	assert.Equal(t, 422, remote.Status)
	assert.Equal(t, "url field required", remote.Payload["detail"])
}

func TestInvoke_TimeoutProducesTimeoutCode(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestClient().InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 0, 50*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, entity.CodeTimeout, entity.CodeOf(err))
	assert.Equal(t, entity.KindNetwork, entity.KindOf(err))
	assert.Less(t, elapsed, time.Second, "timeout must fire promptly, not later")
}

func TestInvoke_ParentCancellationAborts(t *testing.T) {
	var attempts int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient().InvokeWithPolicy(ctx, srv.URL, Options{Method: "GET"}, 5, 10*time.Second)

	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, entity.IsTagged(err), "cancellation must still surface as a taxonomy error")
	assert.Equal(t, int64(1), atomic.LoadInt64(&attempts), "no further attempts after cancellation")
}

func TestInvoke_UndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	_, err := newTestClient().InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 0, time.Second)

	require.Error(t, err)
	assert.Equal(t, entity.CodeService, entity.CodeOf(err))
	assert.Equal(t, entity.KindService, entity.KindOf(err))
}

func TestInvoke_RejectsInvalidMethod(t *testing.T) {
	_, err := newTestClient().Invoke(context.Background(), "http://localhost:1/x", Options{Method: "PATCH"})

	require.Error(t, err)
	assert.Equal(t, entity.CodeValidation, entity.CodeOf(err))
}

func TestInvoke_RejectsMalformedURL(t *testing.T) {
	_, err := newTestClient().Invoke(context.Background(), "not-a-url", Options{Method: "GET"})

	require.Error(t, err)
	assert.Equal(t, entity.CodeValidation, entity.CodeOf(err))
}

func TestInvoke_RejectsUnserializableBody(t *testing.T) {
	_, err := newTestClient().Invoke(context.Background(), "http://localhost:1/x", Options{
		Method: "POST",
		Body:   map[string]any{"ch": make(chan int)},
	})

	require.Error(t, err)
	assert.Equal(t, entity.CodeValidation, entity.CodeOf(err))
}

func TestInvoke_OpenBreakerRejectsWithoutNetwork(t *testing.T) {
	var attempts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "test-backend",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	})
	client := NewClient(Config{Timeout: time.Second, RetryCount: 0, Backoff: fastBackoff()}, breaker, nil)

	// Trip the breaker.
	for i := 0; i < 3; i++ {
		_, _ = client.InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 0, time.Second)
	}
	require.True(t, breaker.IsOpen())

	before := atomic.LoadInt64(&attempts)
	_, err := client.InvokeWithPolicy(context.Background(), srv.URL, Options{Method: "GET"}, 0, time.Second)

	require.Error(t, err)
	assert.Equal(t, entity.CodeService, entity.CodeOf(err))
	assert.Equal(t, before, atomic.LoadInt64(&attempts), "open breaker must not touch the network")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRetryCount, cfg.RetryCount)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("INVOKER_TIMEOUT", "5s")
	t.Setenv("INVOKER_RETRY_COUNT", "1")

	cfg := LoadConfig()

	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.RetryCount)
}
