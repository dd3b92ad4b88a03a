package config

import (
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kroma-labs/httprequester/echoserver"
	"github.com/kroma-labs/httprequester/httpclient"
	"github.com/kroma-labs/httprequester/requester"
	"github.com/kroma-labs/httprequester/uritemplate"
	"github.com/kroma-labs/httprequester/useragent"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runtime carries process dependencies that cannot be expressed as
// configuration values. Nil providers leave telemetry disabled.
type Runtime struct {
	Logger         zerolog.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Redis          redis.UniversalClient
}

// NewLogger builds the zerolog logger described by the log section.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.EqualFold(c.Log.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewRedis returns a client for the redis section, or nil when no address
// is configured.
func (c *Config) NewRedis() redis.UniversalClient {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientOptions maps the client, breaker, rate_limit and chaos sections to
// httpclient options.
func (c *Config) ClientOptions(rt Runtime) ([]httpclient.Option, error) {
	preset, ok := httpclient.Preset(c.Client.Preset)
	if !ok {
		return nil, invalid("client.preset", "unknown preset "+c.Client.Preset)
	}

	opts := []httpclient.Option{
		httpclient.WithConfig(preset),
		httpclient.WithBaseURL(c.Client.BaseURL),
		httpclient.WithServiceName(c.Telemetry.ServiceName),
		httpclient.WithDecompression(c.Client.Decompression),
		httpclient.WithCoalescing(c.Client.Coalescing),
		httpclient.WithLogger(rt.Logger),
		httpclient.WithDebug(c.Client.Debug),
		httpclient.WithGenerateCurl(c.Client.Curl),
	}
	if c.Client.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(c.Client.Timeout))
	}
	if c.Client.Lease > 0 {
		opts = append(opts, httpclient.WithConnectionLease(c.Client.Lease))
	}

	for _, name := range sortedKeys(c.Client.Headers) {
		opts = append(opts, httpclient.WithHeader(name, c.Client.Headers[name]))
	}

	if ua := c.Client.UserAgent; ua.Product != "" {
		agent := useragent.New(ua.Product, ua.Version)
		if ua.Comment != "" {
			agent = agent.AddComment(ua.Product, ua.Version, ua.Comment)
		}
		opts = append(opts, httpclient.WithUserAgent(agent))
	}

	if rt.TracerProvider != nil {
		opts = append(opts, httpclient.WithTracerProvider(rt.TracerProvider))
	}
	if rt.MeterProvider != nil {
		opts = append(opts, httpclient.WithMeterProvider(rt.MeterProvider))
	}

	if c.Breaker.Enabled {
		breaker, err := c.breakerConfig(rt.Redis)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpclient.WithBreaker(breaker))
	}

	if c.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, httpclient.WithRateLimit(httpclient.RateLimitConfig{
			RequestsPerSecond: c.RateLimit.RequestsPerSecond,
			Burst:             c.RateLimit.Burst,
			WaitOnLimit:       c.RateLimit.Wait,
		}))
	}

	chaos := httpclient.ChaosConfig{
		Latency:       c.Chaos.Latency,
		LatencyJitter: c.Chaos.LatencyJitter,
		ErrorRate:     c.Chaos.ErrorRate,
		TimeoutRate:   c.Chaos.TimeoutRate,
	}
	if chaos.Enabled() {
		opts = append(opts, httpclient.WithHandler(httpclient.ChaosHandler(chaos)))
	}

	return opts, nil
}

func (c *Config) breakerConfig(rdb redis.UniversalClient) (httpclient.BreakerConfig, error) {
	bc := httpclient.DefaultBreakerConfig()
	if c.Breaker.Distributed {
		if rdb == nil {
			return bc, invalid("redis.addr", "is required for a distributed breaker")
		}
		bc.Store = httpclient.NewRedisStore(rdb)
	}

	if v := c.Breaker.MaxRequests; v > 0 {
		bc.MaxRequests = v
	}
	if v := c.Breaker.Interval; v > 0 {
		bc.Interval = v
	}
	if v := c.Breaker.Timeout; v > 0 {
		bc.Timeout = v
	}
	if v := c.Breaker.FailureThreshold; v > 0 {
		bc.FailureThreshold = v
	}
	if v := c.Breaker.FailureRatio; v > 0 {
		bc.FailureRatio = v
	}
	if v := c.Breaker.ConsecutiveFailures; v > 0 {
		bc.ConsecutiveFailures = v
	}
	return bc, nil
}

// RequesterOptions maps the retry section and client.default_query to
// requester options.
func (c *Config) RequesterOptions(rt Runtime) []requester.Option {
	opts := []requester.Option{
		requester.WithRetryConfig(c.RetryPolicy()),
		requester.WithLogger(rt.Logger),
	}
	if rt.MeterProvider != nil {
		opts = append(opts, requester.WithMeterProvider(rt.MeterProvider))
	}

	if len(c.Client.DefaultQuery) > 0 {
		var params uritemplate.Params
		for _, name := range sortedKeys(c.Client.DefaultQuery) {
			params = params.Add(name, c.Client.DefaultQuery[name])
		}
		opts = append(opts, requester.WithDefaults(params))
	}
	return opts
}

// ServerOptions maps the server section to echoserver options.
func (c *Config) ServerOptions(rt Runtime) []echoserver.Option {
	cfg := echoserver.DefaultConfig()
	cfg.Addr = c.Server.Addr
	cfg.ServiceName = c.Telemetry.ServiceName
	cfg.Logger = rt.Logger
	if c.Server.MaxDelay > 0 {
		cfg.MaxDelay = c.Server.MaxDelay
	}
	if c.Server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = c.Server.ShutdownTimeout
	}

	opts := []echoserver.Option{
		echoserver.WithConfig(cfg),
		echoserver.WithPrometheus(c.Telemetry.Prometheus),
	}
	if rt.TracerProvider != nil {
		opts = append(opts, echoserver.WithTracerProvider(rt.TracerProvider))
	}
	if rt.MeterProvider != nil {
		opts = append(opts, echoserver.WithMeterProvider(rt.MeterProvider))
	}
	if rt.Redis != nil {
		opts = append(opts, echoserver.WithRedis(rt.Redis))
	}
	return opts
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
