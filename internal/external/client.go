// Package external provides the anti-corruption layer between the signup flow
// and the payment processor. Outbound HTTP passes through BreakerTransport so
// a failing upstream trips a circuit breaker instead of stacking up calls.
package external

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"cardsignup/internal/types"
)

// errUpstreamStatus marks a 429 or 5xx response as a breaker failure while the
// response itself is still handed back to the SDK for error decoding.
var errUpstreamStatus = errors.New("upstream returned failure status")

// BreakerSettings configures the circuit breaker used by BreakerTransport.
type BreakerSettings struct {
	Name                string
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings returns the breaker tuning for the payment processor.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:                name,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerTransport is an http.RoundTripper that routes every request through a
// gobreaker circuit breaker. It never retries: one RoundTrip is one attempt.
type BreakerTransport struct {
	next      http.RoundTripper
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBreakerTransport wraps next (http.DefaultTransport when nil).
func NewBreakerTransport(next http.RoundTripper, settings BreakerSettings, userAgent string) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	threshold := settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return NewBreakerTransportWithBreaker(next, cb, userAgent)
}

// NewBreakerTransportWithBreaker uses a caller-provided breaker. Tests use it
// to control trip thresholds.
func NewBreakerTransportWithBreaker(next http.RoundTripper, cb *gobreaker.CircuitBreaker[*http.Response], userAgent string) *BreakerTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &BreakerTransport{
		next:      next,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// RoundTrip implements http.RoundTripper.
//
// 429 and 5xx responses count as breaker failures but are returned unchanged
// so the caller can decode the upstream error body. While the breaker is open
// RoundTrip fails fast with an upstream_rate_limited AppError.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	if id := types.GetInvocationID(req.Context()); id != "" {
		if req.Header.Get("X-Invocation-Id") == "" {
			req = req.Clone(req.Context())
			req.Header.Set("X-Invocation-Id", id)
		}
	}

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		r, rtErr := t.next.RoundTrip(req)
		if rtErr != nil {
			return nil, rtErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("%w: %d", errUpstreamStatus, r.StatusCode)
		}
		return r, nil
	})
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, errUpstreamStatus) && resp != nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}
	return nil, err
}

// State reports the current breaker state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}

// NewHTTPClient builds the *http.Client used for processor calls.
func NewHTTPClient(timeout time.Duration, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
