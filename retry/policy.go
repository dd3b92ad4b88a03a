// Package retry runs a single send operation with bounded, classifier-driven
// retries.
//
// A Policy makes at most MaxRetries+1 attempts. Each attempt's result is
// classified as Success, Retryable or Fatal. Waits between attempts honor
// the context and only block the calling goroutine.
//
// Example:
//
//	policy := retry.New(
//	    retry.WithMaxRetries(3),
//	    retry.WithDelay(200*time.Millisecond),
//	)
//
//	resp, err := policy.Do(ctx, func(ctx context.Context) (*http.Response, error) {
//	    req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	    return http.DefaultClient.Do(req)
//	})
package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scope = "github.com/kroma-labs/httprequester/retry"

// maxDrainBytes bounds how much of a discarded response body is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// errFatalResponse stops the loop on a response classified as Fatal.
var errFatalResponse = errors.New("retry: fatal response")

// Attempt performs one try. It must build a fresh request every call.
type Attempt func(ctx context.Context) (*http.Response, error)

// Event describes a scheduled retry.
type Event struct {
	// Attempt is the 1-based number of the attempt that just failed.
	Attempt int
	Wait    time.Duration
	Status  int
	Err     error
}

// Policy is an immutable retry policy. The zero value makes a single
// attempt with no retries.
type Policy struct {
	maxRetries     uint
	newBackOff     func() backoff.BackOff
	classifier     Classifier
	maxElapsedTime time.Duration
	logger         zerolog.Logger
	metrics        *metrics
	attrs          []attribute.KeyValue
	onRetry        func(Event)
}

// Option configures a Policy.
type Option func(*Policy)

// New creates a Policy. Without options it never retries and waits
// DefaultDelay between attempts once retries are enabled.
func New(opts ...Option) Policy {
	p := Policy{
		newBackOff: DefaultConfig().NewBackOff,
		classifier: DefaultClassifier,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithConfig applies a Config: retries, strategy and elapsed-time budget.
func WithConfig(cfg Config) Option {
	return func(p *Policy) {
		p.maxRetries = cfg.MaxRetries
		p.maxElapsedTime = cfg.MaxElapsedTime
		p.newBackOff = cfg.NewBackOff
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n uint) Option {
	return func(p *Policy) {
		p.maxRetries = n
	}
}

// WithDelay waits a fixed duration between attempts.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.newBackOff = func() backoff.BackOff {
			return backoff.NewConstantBackOff(d)
		}
	}
}

// WithDelayFunc computes the wait from the retry number. A negative wait
// stops retrying.
func WithDelayFunc(fn DelayFunc) Option {
	return func(p *Policy) {
		p.newBackOff = func() backoff.BackOff {
			return &FuncBackOff{Delay: fn}
		}
	}
}

// WithBackOff uses a custom strategy. newBackOff is called once per
// Execute because backoff.BackOff implementations are stateful.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(p *Policy) {
		if newBackOff != nil {
			p.newBackOff = newBackOff
		}
	}
}

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		if c != nil {
			p.classifier = c
		}
	}
}

// WithMaxElapsedTime bounds the whole retry sequence. Zero, the default,
// leaves it unbounded so only the retry count applies.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(p *Policy) {
		p.maxElapsedTime = d
	}
}

// WithLogger logs each scheduled retry at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithMeterProvider records retry metrics with the given provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Policy) {
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		p.metrics, _ = newMetrics(mp.Meter(scope))
	}
}

// WithAttributes adds attributes to every recorded metric.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(p *Policy) {
		p.attrs = append(append([]attribute.KeyValue(nil), p.attrs...), attrs...)
	}
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(Event)) Option {
	return func(p *Policy) {
		p.onRetry = fn
	}
}

// MaxRetries returns the configured retry count.
func (p Policy) MaxRetries() uint {
	return p.maxRetries
}

// WithMaxRetries returns a copy of p with a different retry count.
func (p Policy) WithMaxRetries(n uint) Policy {
	p.maxRetries = n
	return p
}

// Do runs Execute and returns the final response and error.
func (p Policy) Do(ctx context.Context, attempt Attempt) (*http.Response, error) {
	out := p.Execute(ctx, attempt)
	return out.Response, out.Err
}

// Execute runs attempt until it succeeds, fails fatally, or the retry
// budget is spent.
//
// On exhaustion the last transient error is returned unchanged. If the last
// attempt produced a retryable response instead, that response is returned
// with a nil error.
func (p Policy) Execute(ctx context.Context, attempt Attempt) Outcome {
	classifier := p.classifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	var (
		last  Outcome
		tries int
		start = time.Now()
		span  = trace.SpanFromContext(ctx)
	)

	operation := func() (*http.Response, error) {
		if last.Kind == Retryable {
			discard(last.Response)
		}

		tries++
		resp, err := attempt(ctx)
		kind := classifier(resp, err)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; its cancellation is not ours to retry.
			kind = Fatal
		}
		last = Outcome{Kind: kind, Response: resp, Err: err, Attempts: tries}

		switch kind {
		case Retryable:
			if err == nil {
				err = &statusError{code: statusOf(resp)}
			}
			return nil, err
		case Fatal:
			if err == nil {
				err = errFatalResponse
			}
			return nil, backoff.Permanent(err)
		default:
			return resp, nil
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.maxRetries + 1),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.notify(ctx, span, Event{
				Attempt: tries,
				Wait:    next,
				Status:  statusOf(last.Response),
				Err:     last.Err,
			}, err)
		}),
		// Zero lifts backoff's own 15 minute default.
		backoff.WithMaxElapsedTime(p.maxElapsedTime),
	}

	_, err := backoff.Retry(ctx, operation, opts...)

	if tries > 1 {
		span.SetAttributes(
			attribute.Int("http.retry_count", tries-1),
			attribute.Bool("http.retry_success", last.Kind == Success),
		)
		p.metrics.recordRetryDuration(ctx, p.attrs, time.Since(start))
	}

	return p.finish(ctx, last, err)
}

// finish maps the backoff loop result back onto the last attempt.
func (p Policy) finish(ctx context.Context, last Outcome, err error) Outcome {
	if err == nil {
		return last
	}

	var se *statusError
	switch {
	case last.Kind == Fatal && last.Err == nil:
		// A response the classifier chose not to retry is still data.
		return last
	case last.Kind == Retryable && last.Err == nil && errors.As(err, &se):
		p.metrics.recordRetryExhausted(ctx, p.attrs)
		return last
	case last.Err != nil && errors.Is(err, last.Err):
		if last.Kind == Retryable {
			p.metrics.recordRetryExhausted(ctx, p.attrs)
		}
		return Outcome{Kind: last.Kind, Err: last.Err, Attempts: last.Attempts}
	default:
		// Cancelled or timed out while waiting between attempts.
		if last.Kind == Retryable {
			discard(last.Response)
		}
		return Outcome{Kind: Fatal, Err: err, Attempts: last.Attempts}
	}
}

func (p Policy) backOff() backoff.BackOff {
	if p.newBackOff == nil {
		return backoff.NewConstantBackOff(DefaultDelay)
	}
	b := p.newBackOff()
	b.Reset()
	return b
}

func (p Policy) notify(ctx context.Context, span trace.Span, ev Event, err error) {
	p.logger.Debug().
		Int("attempt", ev.Attempt).
		Dur("wait", ev.Wait).
		Int("status", ev.Status).
		Err(err).
		Msg("retrying request")

	if span.IsRecording() {
		attrs := []attribute.KeyValue{
			attribute.Int("retry.attempt", ev.Attempt),
			attribute.Int64("retry.delay_ms", ev.Wait.Milliseconds()),
		}
		if ev.Status != 0 {
			attrs = append(attrs, attribute.Int("http.response.status_code", ev.Status))
		}
		if ev.Err != nil {
			span.RecordError(ev.Err)
		}
		span.AddEvent("http.retry", trace.WithAttributes(attrs...))
	}

	p.metrics.recordRetryAttempt(ctx, p.attrs, ev.Attempt)

	if p.onRetry != nil {
		p.onRetry(ev)
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// discard drains and closes a response that will not be returned.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
