package external

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignup/internal/types"
)

func newTestBreaker(threshold uint32) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test-breaker",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool { return err == nil },
	})
}

func doGet(t *testing.T, c *http.Client, ctx context.Context, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestBreakerTransport_PassesThroughSuccess(t *testing.T) {
	var gotUA, gotInvocation string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotInvocation = r.Header.Get("X-Invocation-Id")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewBreakerTransport(nil, DefaultBreakerSettings("stripe"), "CardSignup-Test/1.0")
	c := NewHTTPClient(5*time.Second, transport)

	ctx := types.WithInvocationID(context.Background(), "inv-123")
	resp, err := doGet(t, c, ctx, server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CardSignup-Test/1.0", gotUA)
	assert.Equal(t, "inv-123", gotInvocation)
	assert.Equal(t, gobreaker.StateClosed, transport.State())
}

func TestBreakerTransport_ReturnsFailureResponsesUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"type":"api_error"}}`))
	}))
	defer server.Close()

	transport := NewBreakerTransportWithBreaker(nil, newTestBreaker(10), "")
	c := NewHTTPClient(5*time.Second, transport)

	resp, err := doGet(t, c, context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBreakerTransport_DoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewHTTPClient(5*time.Second, NewBreakerTransportWithBreaker(nil, newTestBreaker(10), ""))
	resp, err := doGet(t, c, context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerTransport_OpenBreakerFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	transport := NewBreakerTransportWithBreaker(nil, newTestBreaker(2), "")
	c := NewHTTPClient(5*time.Second, transport)

	for i := 0; i < 2; i++ {
		resp, err := doGet(t, c, context.Background(), server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, transport.State())

	_, err := doGet(t, c, context.Background(), server.URL)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerTransport_ClientErrorsDoNotTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	transport := NewBreakerTransportWithBreaker(nil, newTestBreaker(1), "")
	c := NewHTTPClient(5*time.Second, transport)

	for i := 0; i < 3; i++ {
		resp, err := doGet(t, c, context.Background(), server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, transport.State())
}
