package retry

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Strategy names a delay strategy between attempts.
type Strategy string

const (
	// StrategyConstant waits Delay between every attempt.
	StrategyConstant Strategy = "constant"
	// StrategyLinear grows the wait by Delay each retry.
	StrategyLinear Strategy = "linear"
	// StrategyExponential multiplies the wait by Multiplier each retry.
	StrategyExponential Strategy = "exponential"
	// StrategyDecorrelated uses decorrelated jitter between Delay and MaxDelay.
	StrategyDecorrelated Strategy = "decorrelated"
)

// Default values for Config.
const (
	// DefaultDelay is the fixed wait between attempts.
	DefaultDelay = 3 * time.Second

	// DefaultMaxDelay caps growing strategies.
	DefaultMaxDelay = 30 * time.Second

	// DefaultMultiplier is the growth factor for StrategyExponential.
	DefaultMultiplier = 2.0
)

// Config describes a retry policy in plain values, suitable for loading
// from configuration files.
//
// Example:
//
//	cfg := retry.DefaultConfig()
//	cfg.MaxRetries = 3
//	cfg.Strategy = retry.StrategyExponential
//	policy := retry.New(retry.WithConfig(cfg))
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 0
	MaxRetries uint

	// Delay is the fixed wait, or the initial wait for growing strategies.
	// Default: 3s
	Delay time.Duration

	// MaxDelay caps the wait for growing strategies.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is used by StrategyExponential.
	// Default: 2.0
	Multiplier float64

	// JitterFactor randomizes waits by ±factor. 0 disables jitter.
	JitterFactor float64

	// MaxElapsedTime bounds the whole retry sequence. 0 means no bound
	// beyond MaxRetries.
	MaxElapsedTime time.Duration

	// Strategy selects the delay strategy.
	// Default: StrategyConstant
	Strategy Strategy
}

// DefaultConfig returns a constant 3s delay with retries disabled.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 0,
		Delay:      DefaultDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: DefaultMultiplier,
		Strategy:   StrategyConstant,
	}
}

// IsEnabled returns true if at least one retry is allowed.
func (c Config) IsEnabled() bool {
	return c.MaxRetries > 0
}

// Validate checks the strategy name and numeric ranges.
func (c Config) Validate() error {
	switch c.Strategy {
	case "", StrategyConstant, StrategyLinear, StrategyExponential, StrategyDecorrelated:
	default:
		return fmt.Errorf("retry: unknown strategy %q", c.Strategy)
	}
	if c.Delay < 0 || c.MaxDelay < 0 || c.MaxElapsedTime < 0 {
		return fmt.Errorf("retry: durations must not be negative")
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("retry: jitter factor %v out of range [0, 1]", c.JitterFactor)
	}
	return nil
}

// NewBackOff builds a fresh backoff.BackOff for one retry sequence.
func (c Config) NewBackOff() backoff.BackOff {
	maxDelay := c.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	switch c.Strategy {
	case StrategyLinear:
		return &LinearBackOff{
			InitialInterval: c.Delay,
			Increment:       c.Delay,
			MaxInterval:     maxDelay,
			JitterFactor:    c.JitterFactor,
		}
	case StrategyExponential:
		multiplier := c.Multiplier
		if multiplier <= 1 {
			multiplier = DefaultMultiplier
		}
		b := &backoff.ExponentialBackOff{
			InitialInterval:     c.Delay,
			RandomizationFactor: c.JitterFactor,
			Multiplier:          multiplier,
			MaxInterval:         maxDelay,
		}
		b.Reset()
		return b
	case StrategyDecorrelated:
		return &DecorrelatedJitterBackOff{Base: c.Delay, Cap: maxDelay}
	default:
		if c.JitterFactor > 0 {
			return &FuncBackOff{Delay: func(int) time.Duration {
				return applyJitter(c.Delay, c.JitterFactor)
			}}
		}
		return backoff.NewConstantBackOff(c.Delay)
	}
}
