package requester

import (
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kroma-labs/httprequester/retry"
	"github.com/kroma-labs/httprequester/uritemplate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
)

// =============================================================================
// Requester Options
// =============================================================================

type config struct {
	policy    *retry.Policy
	retryOpts []retry.Option
	modifiers []Modifier
	defaults  uritemplate.Params
	logger    zerolog.Logger
}

// Option configures a Requester.
type Option func(*config)

// WithRetryPolicy uses policy for retried calls. Other retry options are
// ignored when it is set.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *config) {
		c.policy = &policy
	}
}

// WithRetryConfig applies a retry.Config: default retry count, delay
// strategy and elapsed-time budget.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *config) {
		c.retryOpts = append(c.retryOpts, retry.WithConfig(cfg))
	}
}

// WithRetryDelay waits a fixed duration between attempts.
// Default: retry.DefaultDelay
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		c.retryOpts = append(c.retryOpts, retry.WithDelay(d))
	}
}

// WithBackOff computes waits with a fresh backoff.BackOff per call.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *config) {
		c.retryOpts = append(c.retryOpts, retry.WithBackOff(newBackOff))
	}
}

// WithRetryClassifier decides which outcomes are retried.
// Default: retry.DefaultClassifier
func WithRetryClassifier(classifier retry.Classifier) Option {
	return func(c *config) {
		c.retryOpts = append(c.retryOpts, retry.WithClassifier(classifier))
	}
}

// WithModifiers registers modifiers, run after any registered before.
func WithModifiers(modifiers ...Modifier) Option {
	return func(c *config) {
		for _, m := range modifiers {
			if m != nil {
				c.modifiers = append(c.modifiers, m)
			}
		}
	}
}

// WithDefaults merges params into the query of every request. A default
// is skipped when the request already has a parameter of that name.
func WithDefaults(params uritemplate.Params) Option {
	return func(c *config) {
		c.defaults = append(c.defaults, params...)
	}
}

// WithLogger logs retries and failed calls.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
		c.retryOpts = append(c.retryOpts, retry.WithLogger(logger))
	}
}

// WithMeterProvider records retry metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.retryOpts = append(c.retryOpts, retry.WithMeterProvider(mp))
	}
}

// =============================================================================
// Call Options
// =============================================================================

type callConfig struct {
	authorization string
	retries       *uint
	params        uritemplate.Params
	headers       [][2]string
}

// CallOption configures a single call.
type CallOption func(*callConfig)

// WithAuth sends "Authorization: <scheme> <token>".
func WithAuth(scheme, token string) CallOption {
	return func(c *callConfig) {
		c.authorization = scheme + " " + token
	}
}

// WithAuthorization sends a raw Authorization value.
func WithAuthorization(value string) CallOption {
	return func(c *callConfig) {
		c.authorization = value
	}
}

// WithRetries sets the number of retries for a GET call. Post, Put and
// Delete ignore it; use SendMessageWithRetries instead.
func WithRetries(n uint) CallOption {
	return func(c *callConfig) {
		c.retries = &n
	}
}

// WithParams binds the path as a template against params. Unconsumed
// params become the query string.
func WithParams(params uritemplate.Params) CallOption {
	return func(c *callConfig) {
		if params == nil {
			params = uritemplate.Params{}
		}
		c.params = params
	}
}

// WithRequestHeader sets a header on this call only.
func WithRequestHeader(key, value string) CallOption {
	return func(c *callConfig) {
		c.headers = append(c.headers, [2]string{key, value})
	}
}

func newCallConfig(opts []CallOption) callConfig {
	var c callConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// apply shapes spec from the call options. Authorization is applied later,
// after modifiers and defaults.
func (c callConfig) apply(spec RequestSpec) RequestSpec {
	if c.params != nil {
		spec = spec.WithParams(c.params)
	}
	for _, h := range c.headers {
		spec = spec.WithHeader(h[0], h[1])
	}
	return spec
}
