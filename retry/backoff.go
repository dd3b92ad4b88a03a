package retry

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	_ backoff.BackOff = (*FuncBackOff)(nil)
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
)

// DelayFunc returns the wait before the given retry. retry starts at 1.
type DelayFunc func(retry int) time.Duration

// FuncBackOff adapts a DelayFunc to backoff.BackOff.
type FuncBackOff struct {
	Delay DelayFunc

	retry int
}

// Reset restarts the retry counter.
func (b *FuncBackOff) Reset() {
	b.retry = 0
}

// NextBackOff returns Delay(n) for the n-th retry.
func (b *FuncBackOff) NextBackOff() time.Duration {
	b.retry++
	d := b.Delay(b.retry)
	if d < 0 {
		return backoff.Stop
	}
	return d
}

// LinearBackOff grows the interval by a fixed increment.
//
// Example with Initial=1s, Increment=500ms and no jitter:
//
//	Retry 1: 1.0s
//	Retry 2: 1.5s
//	Retry 3: 2.0s
type LinearBackOff struct {
	InitialInterval time.Duration
	Increment       time.Duration
	MaxInterval     time.Duration

	// JitterFactor randomizes each interval by ±factor (0.0-1.0).
	JitterFactor float64

	retry int
}

// NewLinearBackOff creates a LinearBackOff with 500ms steps capped at 30s.
func NewLinearBackOff() *LinearBackOff {
	return &LinearBackOff{
		InitialInterval: 500 * time.Millisecond,
		Increment:       500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		JitterFactor:    0.5,
	}
}

// Reset resets the backoff to its initial state.
func (b *LinearBackOff) Reset() {
	b.retry = 0
}

// NextBackOff returns the next interval with jitter applied.
func (b *LinearBackOff) NextBackOff() time.Duration {
	interval := b.InitialInterval + time.Duration(b.retry)*b.Increment
	if b.MaxInterval > 0 && interval > b.MaxInterval {
		interval = b.MaxInterval
	}
	b.retry++
	return applyJitter(interval, b.JitterFactor)
}

// DecorrelatedJitterBackOff picks each interval at random between Base and
// three times the previous interval, capped at Cap.
//
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	Base time.Duration
	Cap  time.Duration

	sleep time.Duration
}

// NewDecorrelatedJitterBackOff creates a DecorrelatedJitterBackOff between
// 500ms and 30s.
func NewDecorrelatedJitterBackOff() *DecorrelatedJitterBackOff {
	return &DecorrelatedJitterBackOff{
		Base: 500 * time.Millisecond,
		Cap:  30 * time.Second,
	}
}

// Reset resets the backoff to its initial state.
func (b *DecorrelatedJitterBackOff) Reset() {
	b.sleep = b.Base
}

// NextBackOff returns the next interval.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	if b.sleep == 0 {
		b.sleep = b.Base
	}

	upperBound := min(b.sleep*3, b.Cap)
	b.sleep = randomBetween(b.Base, upperBound)
	return b.sleep
}

// applyJitter returns interval randomized within ±jitterFactor.
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return interval
	}
	jitterFactor = min(jitterFactor, 1)

	delta := float64(interval) * jitterFactor
	lo := float64(interval) - delta

	//nolint:gosec // jitter does not need a cryptographic source
	return time.Duration(lo + rand.Float64()*2*delta)
}

// randomBetween returns a random duration in [minDur, maxDur).
//
//nolint:gosec // jitter does not need a cryptographic source
func randomBetween(minDur, maxDur time.Duration) time.Duration {
	if minDur >= maxDur {
		return minDur
	}
	return minDur + time.Duration(rand.Int64N(int64(maxDur-minDur)))
}
