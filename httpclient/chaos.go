package httpclient

import (
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// ErrChaosInjected is the cause of every failure injected by ChaosHandler.
var ErrChaosInjected = errors.New("chaos: simulated network error")

// ChaosConfig configures fault injection for exercising retry and breaker
// behavior outside production.
//
//	client, err := httpclient.NewBuilder().
//	    BaseAddress(base).
//	    Handler(httpclient.ChaosHandler(httpclient.ChaosConfig{
//	        Latency:   200 * time.Millisecond,
//	        ErrorRate: 0.1,
//	    })).
//	    Create()
type ChaosConfig struct {
	// Latency is added to every request.
	Latency time.Duration

	// LatencyJitter adds a random delay in [0, LatencyJitter) on top.
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing with a connection
	// error. Such errors are not transient.
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of failing with a timeout
	// error. Such errors are transient and retried.
	TimeoutRate float64
}

// Enabled reports whether the config injects anything.
func (c ChaosConfig) Enabled() bool {
	return c.Latency > 0 || c.LatencyJitter > 0 || c.ErrorRate > 0 || c.TimeoutRate > 0
}

// Delay returns the total delay to apply, including jitter.
func (c ChaosConfig) Delay() time.Duration {
	delay := c.Latency
	if c.LatencyJitter > 0 {
		delay += rand.N(c.LatencyJitter) //nolint:gosec
	}
	return delay
}

func roll(rate float64) bool {
	return rate > 0 && rand.Float64() < rate //nolint:gosec
}

// chaosTimeoutError is a net.Error that reports a timeout.
type chaosTimeoutError struct{}

func (chaosTimeoutError) Error() string   { return "chaos: simulated timeout" }
func (chaosTimeoutError) Timeout() bool   { return true }
func (chaosTimeoutError) Temporary() bool { return true }
func (chaosTimeoutError) Unwrap() error   { return ErrChaosInjected }

// ChaosHandler returns a Handler injecting the configured faults. A config
// that injects nothing yields a nil Handler, which the chain skips.
func ChaosHandler(cfg ChaosConfig) Handler {
	if !cfg.Enabled() {
		return nil
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()

			if roll(cfg.TimeoutRate) {
				return nil, &net.OpError{Op: "read", Net: "tcp", Err: chaosTimeoutError{}}
			}
			if roll(cfg.ErrorRate) {
				return nil, &net.OpError{Op: "dial", Net: "tcp", Err: ErrChaosInjected}
			}

			if delay := cfg.Delay(); delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}

			return next.RoundTrip(req)
		})
	}
}
