package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// ErrCircuitOpen is returned, wrapping the gobreaker error, when the breaker
// rejects a request without sending it.
var ErrCircuitOpen = errors.New("httpclient: circuit breaker open")

// errSyntheticFailure tells the breaker that a response counts as a failure
// (e.g. 503) even though the round trip itself succeeded. It never reaches
// the caller.
var errSyntheticFailure = errors.New("synthetic failure")

// NewRedisStore creates a SharedDataStore backed by Redis for distributed
// circuit breaking.
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	store := httpclient.NewRedisStore(rdb)
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is the subset of gobreaker used by the breaker handler.
type CircuitBreaker interface {
	Execute(req func() (interface{}, error)) (interface{}, error)
}

// BreakerClassifier reports whether a round trip counts as a failure.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig holds the configuration for the circuit breaker.
//
// Concepts:
//   - Closed: Normal state, requests allowed.
//   - Open: Failing state, requests rejected immediately.
//   - Half-Open: Probing state, limited requests allowed to test recovery.
type BreakerConfig struct {
	// MaxRequests is the number of requests let through while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts
	// are cleared. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the minimum number of requests before the breaker
	// may trip.
	FailureThreshold uint32

	// FailureRatio trips the breaker once failures/requests reaches it.
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after that many failures in a
	// row. Zero disables the rule.
	ConsecutiveFailures uint32

	// Store shares breaker state between processes. Nil keeps it local.
	Store gobreaker.SharedDataStore

	// Classifier decides what counts as a failure.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns a local breaker that trips after 5
// consecutive failures, or a 50% failure ratio over at least 20 requests,
// and probes again after 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig with shared state,
// so one instance tripping the breaker stops traffic from all of them.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts 5xx responses and network errors as
// failures. 4xx responses are the caller's problem, not the server's.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= 500
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, context.DeadlineExceeded)
}

// circuitBreakerTransport runs each round trip through a circuit breaker.
type circuitBreakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	metrics    *metrics
	name       string
}

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose // returned to the caller

		if t.classifier(resp, err) {
			if err != nil {
				return resp, err
			}
			return resp, errSyntheticFailure
		}

		return resp, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.metrics.recordBreakerRequest(ctx, t.name, "rejected")
			return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}

		t.metrics.recordBreakerRequest(ctx, t.name, "failure")

		if errors.Is(err, errSyntheticFailure) {
			if resp, ok := res.(*http.Response); ok {
				return resp, nil
			}
		}

		return nil, err
	}

	t.metrics.recordBreakerRequest(ctx, t.name, "success")

	if resp, ok := res.(*http.Response); ok {
		return resp, nil
	}

	return nil, errors.New("httpclient: circuit breaker returned unknown response type")
}

// Unwrap returns the next round tripper.
func (t *circuitBreakerTransport) Unwrap() http.RoundTripper {
	return t.next
}

func newBreakerHandler(cfg *internalConfig) Handler {
	bc := *cfg.breakerConfig
	if bc.Classifier == nil {
		bc.Classifier = DefaultBreakerClassifier
	}

	name := cfg.serviceName
	if name == "" {
		name = cfg.baseURL
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: readyToTrip(bc),
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.metrics.recordBreakerState(context.Background(), name, int64(to))
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker = gobreaker.NewCircuitBreaker[interface{}](st)
	if bc.Store != nil {
		// Fall back to the local breaker if the shared one cannot be set up.
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[interface{}](bc.Store, st); err == nil {
			cb = dcb
		}
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &circuitBreakerTransport{
			breaker:    cb,
			next:       next,
			classifier: bc.Classifier,
			metrics:    cfg.metrics,
			name:       name,
		}
	}
}

func readyToTrip(bc BreakerConfig) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if bc.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= bc.ConsecutiveFailures {
			return true
		}
		if counts.Requests < bc.FailureThreshold {
			return false
		}
		if bc.FailureRatio > 0 && counts.Requests > 0 {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= bc.FailureRatio
		}
		return false
	}
}
