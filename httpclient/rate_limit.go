package httpclient

import (
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-level rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables the
	// limiter.
	RequestsPerSecond float64

	// Burst is the bucket size; at least 1 when limiting is enabled.
	Burst int

	// WaitOnLimit makes a request wait for a token, bounded by its context.
	// When false the request fails with ErrRateLimited at once.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of 10,
// waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is returned when a request is rejected due to rate limiting.
var ErrRateLimited = errors.New("httpclient: rate limit exceeded")

// rateLimitTransport implements http.RoundTripper with rate limiting.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
	cfg     *internalConfig
}

// newRateLimitHandler shares one limiter across all requests of the client.
func newRateLimitHandler(rl RateLimitConfig, cfg *internalConfig) Handler {
	if rl.RequestsPerSecond <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)

	return func(next http.RoundTripper) http.RoundTripper {
		return &rateLimitTransport{
			next:    next,
			limiter: limiter,
			wait:    rl.WaitOnLimit,
			cfg:     cfg,
		}
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The wait would outlast the deadline.
			t.cfg.metrics.recordRateLimited(ctx, t.cfg.baseAttributes())
			return nil, errors.Join(ErrRateLimited, err)
		}
	} else if !t.limiter.Allow() {
		t.cfg.metrics.recordRateLimited(ctx, t.cfg.baseAttributes())
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}

// Unwrap returns the next round tripper.
func (t *rateLimitTransport) Unwrap() http.RoundTripper {
	return t.next
}
