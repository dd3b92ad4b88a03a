package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kroma-labs/httprequester/httpclient"
	"github.com/kroma-labs/httprequester/retry"
	"github.com/rs/zerolog"
)

// Config is the complete httprequester configuration.
type Config struct {
	Client    ClientConfig    `koanf:"client"`
	Retry     RetryConfig     `koanf:"retry"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Server    ServerConfig    `koanf:"server"`
	Chaos     ChaosConfig     `koanf:"chaos"`
}

// ClientConfig configures the shared HTTP client.
type ClientConfig struct {
	BaseURL string `koanf:"base_url"`

	// Timeout bounds one attempt. Zero keeps the preset's timeout.
	Timeout time.Duration `koanf:"timeout"`

	// Lease recycles pooled connections on this period. Zero never recycles.
	Lease time.Duration `koanf:"lease"`

	// Preset names an httpclient transport preset.
	Preset string `koanf:"preset"`

	Headers      map[string]string `koanf:"headers"`
	DefaultQuery map[string]string `koanf:"default_query"`
	UserAgent    UserAgentConfig   `koanf:"user_agent"`

	Decompression bool `koanf:"decompression"`
	Coalescing    bool `koanf:"coalescing"`
	Debug         bool `koanf:"debug"`
	Curl          bool `koanf:"curl"`
}

type UserAgentConfig struct {
	Product string `koanf:"product"`
	Version string `koanf:"version"`
	Comment string `koanf:"comment"`
}

// RetryConfig mirrors retry.Config.
type RetryConfig struct {
	MaxRetries     uint          `koanf:"max_retries"`
	Delay          time.Duration `koanf:"delay"`
	MaxDelay       time.Duration `koanf:"max_delay"`
	Multiplier     float64       `koanf:"multiplier"`
	JitterFactor   float64       `koanf:"jitter_factor"`
	MaxElapsedTime time.Duration `koanf:"max_elapsed_time"`
	Strategy       string        `koanf:"strategy"`
}

// BreakerConfig enables the circuit breaker. Zero fields keep the
// httpclient defaults.
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	Distributed         bool          `koanf:"distributed"`
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
	FailureThreshold    uint32        `koanf:"failure_threshold"`
	FailureRatio        float64       `koanf:"failure_ratio"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures"`
}

// RateLimitConfig enables client-side rate limiting when RequestsPerSecond
// is positive.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
	Wait              bool    `koanf:"wait"`
}

// RedisConfig locates the Redis used for shared breaker state and echo
// server counters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// OTLPEndpoint enables OTLP/gRPC trace export when set.
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	Insecure     bool   `koanf:"insecure"`

	// Prometheus exports metrics to the default Prometheus registry.
	Prometheus bool `koanf:"prometheus"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	MaxDelay        time.Duration `koanf:"max_delay"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ChaosConfig injects faults into client requests. Meant for testing
// resilience settings, never for production traffic.
type ChaosConfig struct {
	Latency       time.Duration `koanf:"latency"`
	LatencyJitter time.Duration `koanf:"latency_jitter"`
	ErrorRate     float64       `koanf:"error_rate"`
	TimeoutRate   float64       `koanf:"timeout_rate"`
}

// Validate checks the configuration. It returns a *httpclient.ConfigError
// naming the first invalid key.
func (c *Config) Validate() error {
	if c.Client.Timeout < 0 {
		return invalid("client.timeout", "must not be negative")
	}
	if c.Client.Lease < 0 {
		return invalid("client.lease", "must not be negative")
	}
	if _, ok := httpclient.Preset(c.Client.Preset); !ok {
		return invalid("client.preset", fmt.Sprintf("unknown preset %q", c.Client.Preset))
	}
	if c.Client.UserAgent.Product == "" && c.Client.UserAgent.Version != "" {
		return invalid("client.user_agent.product", "is required with a version")
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		return invalid("retry", err.Error())
	}

	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return invalid("breaker.failure_ratio", "must be between 0 and 1")
	}
	if c.Breaker.Enabled && c.Breaker.Distributed && c.Redis.Addr == "" {
		return invalid("redis.addr", "is required for a distributed breaker")
	}

	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return invalid("rate_limit.burst", "must be at least 1")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return invalid("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}

	if c.Chaos.ErrorRate < 0 || c.Chaos.ErrorRate > 1 {
		return invalid("chaos.error_rate", "must be between 0 and 1")
	}
	if c.Chaos.TimeoutRate < 0 || c.Chaos.TimeoutRate > 1 {
		return invalid("chaos.timeout_rate", "must be between 0 and 1")
	}
	return nil
}

// RetryPolicy returns the retry section as a retry.Config.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxRetries:     c.Retry.MaxRetries,
		Delay:          c.Retry.Delay,
		MaxDelay:       c.Retry.MaxDelay,
		Multiplier:     c.Retry.Multiplier,
		JitterFactor:   c.Retry.JitterFactor,
		MaxElapsedTime: c.Retry.MaxElapsedTime,
		Strategy:       retry.Strategy(strings.ToLower(c.Retry.Strategy)),
	}
}

func invalid(field, message string) error {
	return &httpclient.ConfigError{Field: field, Message: message}
}
