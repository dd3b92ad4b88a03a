package echoserver

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the server configuration.
type Config struct {
	// Addr is the TCP address to listen on.
	// Default: ":8080"
	Addr string

	// ServiceName is used in logs, spans and metrics.
	// Default: "echoserver"
	ServiceName string

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration

	// MaxDelay caps /delay/{ms}.
	// Default: 30s
	MaxDelay time.Duration

	// Logger logs requests. A disabled logger logs nothing.
	Logger zerolog.Logger

	// TracerProvider enables server spans when set.
	TracerProvider trace.TracerProvider

	// MeterProvider enables server metrics when set.
	MeterProvider metric.MeterProvider

	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler

	// Redis shares /flaky counters between instances. Nil keeps them in
	// memory.
	Redis redis.UniversalClient
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ServiceName:       "echoserver",
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxDelay:          30 * time.Second,
		Logger:            zerolog.Nop(),
	}
}

// Option configures the server.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.TracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) {
		c.MeterProvider = mp
	}
}

// WithPrometheus serves the default Prometheus registry on /metrics.
func WithPrometheus(enabled bool) Option {
	return func(c *Config) {
		if enabled {
			c.MetricsHandler = PrometheusHandler()
		} else {
			c.MetricsHandler = nil
		}
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Config) {
		c.MetricsHandler = h
	}
}

// WithRedis stores /flaky counters in Redis.
func WithRedis(client redis.UniversalClient) Option {
	return func(c *Config) {
		c.Redis = client
	}
}
