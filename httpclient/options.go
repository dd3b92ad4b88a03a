package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kroma-labs/httprequester/useragent"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/httprequester/httpclient"
)

// =============================================================================
// Config - HTTP Transport Configuration
// =============================================================================

// Config holds the transport tuning parameters. Start from DefaultConfig()
// or one of the presets and adjust fields as needed:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//	cfg.MaxIdleConnsPerHost = 25
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithConfig(cfg),
//	)
type Config struct {
	// Timeout bounds a single attempt, from dialing to the end of the
	// response body. Zero means no timeout.
	//
	// Default: 15s
	Timeout time.Duration

	// ConnectionLease is how often pooled connections to the base address
	// are recycled. Connections idle at the tick are closed; busy ones are
	// closed on a later tick once they return to the pool. Zero never
	// recycles.
	//
	// Default: 0
	ConnectionLease time.Duration

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections kept per
	// host. Since a client talks to one base address this is usually the
	// setting that matters.
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits idle plus active connections per host.
	// Zero means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays in the pool.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is the wait for a 100-continue reply.
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written. Zero falls back to Timeout.
	ResponseHeaderTimeout time.Duration

	// DialTimeout bounds TCP connection establishment.
	//
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// WriteBufferSize and ReadBufferSize size the per-connection buffers.
	WriteBufferSize int
	ReadBufferSize  int

	// DisableKeepAlives forces a new connection per request.
	DisableKeepAlives bool

	// DisableCompression stops the transport from requesting gzip. It has
	// no effect while the decompression handler is enabled, since that
	// handler negotiates encodings itself.
	DisableCompression bool

	// ForceHTTP2 attempts HTTP/2 even with a custom dialer or TLS config.
	ForceHTTP2 bool
}

// DefaultConfig returns balanced settings for general service-to-service
// traffic.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,

		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,
	}
}

// HighThroughputConfig returns settings for many concurrent requests to the
// same downstream service: a larger pool, bigger buffers and no per-host
// connection cap.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Second
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 100
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.WriteBufferSize = 128 * 1024
	cfg.ReadBufferSize = 128 * 1024
	return cfg
}

// LowLatencyConfig returns settings that fail fast.
func LowLatencyConfig() Config {
	return Config{
		Timeout: 5 * time.Second,

		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     60 * time.Second,

		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 500 * time.Millisecond,
		ResponseHeaderTimeout: 3 * time.Second,

		DialTimeout: 2 * time.Second,
		KeepAlive:   15 * time.Second,

		WriteBufferSize: 32 * 1024,
		ReadBufferSize:  32 * 1024,

		ForceHTTP2: true,
	}
}

// ConservativeConfig returns resource-conscious settings for constrained
// environments or processes holding many clients.
func ConservativeConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	cfg.MaxIdleConns = 20
	cfg.MaxIdleConnsPerHost = 5
	cfg.MaxConnsPerHost = 20
	cfg.IdleConnTimeout = 30 * time.Second
	cfg.WriteBufferSize = 4 * 1024
	cfg.ReadBufferSize = 4 * 1024
	return cfg
}

// Preset returns the named preset: "default", "high_throughput",
// "low_latency" or "conservative". The second result is false for an
// unknown name.
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "high_throughput":
		return HighThroughputConfig(), true
	case "low_latency":
		return LowLatencyConfig(), true
	case "conservative":
		return ConservativeConfig(), true
	default:
		return Config{}, false
	}
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig is the frozen result of applying all Options.
type internalConfig struct {
	httpConfig Config

	baseURL        string
	defaultHeaders http.Header
	userAgent      useragent.UserAgent

	// handlers are user handlers in registration order.
	handlers []Handler

	// root replaces the pooled transport (cache handler or mock).
	root http.RoundTripper

	transportConfigurators []func(*http.Transport)

	tlsConfig            *tls.Config
	proxyURL             *url.URL
	proxyFromEnvironment bool

	decompression bool
	coalescing    bool

	breakerConfig   *BreakerConfig
	rateLimitConfig *RateLimitConfig

	// === Observability ===

	serviceName    string
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagators    propagation.TextMapPropagator
	tracer         trace.Tracer
	metrics        *metrics

	logger       *zerolog.Logger
	debug        bool
	generateCurl bool
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:           DefaultConfig(),
		defaultHeaders:       make(http.Header),
		proxyFromEnvironment: true,
		decompression:        true,
		tracerProvider:       otel.GetTracerProvider(),
		meterProvider:        otel.GetMeterProvider(),
		propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.tracer = cfg.tracerProvider.Tracer(scope)
	cfg.metrics, _ = newMetrics(cfg.meterProvider.Meter(scope))

	return cfg
}

// validate reports the first configuration problem, if any.
func (cfg *internalConfig) validate() (*url.URL, error) {
	if cfg.baseURL == "" {
		return nil, ErrMissingBaseAddress
	}

	u, err := url.Parse(cfg.baseURL)
	if err != nil {
		return nil, &ConfigError{Field: "base_address", Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{Field: "base_address", Message: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &ConfigError{Field: "base_address", Message: "host is required"}
	}

	if cfg.httpConfig.Timeout < 0 {
		return nil, &ConfigError{Field: "timeout", Message: "must not be negative"}
	}
	if cfg.httpConfig.ConnectionLease < 0 {
		return nil, &ConfigError{Field: "connection_lease", Message: "must not be negative"}
	}
	if rl := cfg.rateLimitConfig; rl != nil && rl.RequestsPerSecond > 0 && rl.Burst < 1 {
		return nil, &ConfigError{Field: "rate_limit.burst", Message: "must be at least 1"}
	}

	return u, nil
}

// buildTransport creates the pooled http.Transport from the configuration.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:   hc.DialTimeout,
		KeepAlive: hc.KeepAlive,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          hc.MaxIdleConns,
		MaxIdleConnsPerHost:   hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       hc.MaxConnsPerHost,
		IdleConnTimeout:       hc.IdleConnTimeout,
		TLSHandshakeTimeout:   hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: hc.ResponseHeaderTimeout,
		ExpectContinueTimeout: hc.ExpectContinueTimeout,
		DisableKeepAlives:     hc.DisableKeepAlives,
		DisableCompression:    hc.DisableCompression,
		WriteBufferSize:       hc.WriteBufferSize,
		ReadBufferSize:        hc.ReadBufferSize,
		TLSClientConfig:       cfg.tlsConfig,
		ForceAttemptHTTP2:     hc.ForceHTTP2,
	}

	if cfg.proxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.proxyURL)
	} else if cfg.proxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	for _, configure := range cfg.transportConfigurators {
		configure(transport)
	}

	return transport
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.serviceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.serviceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Option configures a Client.
type Option func(*internalConfig)

// WithBaseURL sets the base address every relative path is resolved
// against. Required.
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.baseURL = baseURL
	}
}

// WithConfig replaces the transport tuning. A timeout or lease set earlier
// through WithTimeout or WithConnectionLease is overwritten.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig.Timeout = d
	}
}

// WithConnectionLease recycles pooled connections on the given interval.
func WithConnectionLease(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig.ConnectionLease = d
	}
}

// WithHeader sets a default header. Setting the same key again replaces the
// earlier value.
func WithHeader(key, value string) Option {
	return func(cfg *internalConfig) {
		cfg.defaultHeaders.Set(key, value)
	}
}

// WithHeaders merges default headers. Keys already present are replaced.
func WithHeaders(h http.Header) Option {
	return func(cfg *internalConfig) {
		for k, vs := range h {
			cfg.defaultHeaders[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}
}

// WithUserAgent sets the User-Agent default header when the client is
// created. An empty UserAgent leaves the header unset.
func WithUserAgent(ua useragent.UserAgent) Option {
	return func(cfg *internalConfig) {
		cfg.userAgent = ua
	}
}

// WithHandler appends handlers to the chain. Earlier handlers wrap later
// ones.
func WithHandler(handlers ...Handler) Option {
	return func(cfg *internalConfig) {
		for _, h := range handlers {
			if h != nil {
				cfg.handlers = append(cfg.handlers, h)
			}
		}
	}
}

// WithCacheHandler replaces the pooled transport with rt. The cache handler
// owns the network send; pool tuning and the connection lease do not apply
// to it.
func WithCacheHandler(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.root = rt
	}
}

// WithTransportConfigurator adjusts the pooled transport after it is built.
// Configurators run in registration order.
func WithTransportConfigurator(fn func(*http.Transport)) Option {
	return func(cfg *internalConfig) {
		if fn != nil {
			cfg.transportConfigurators = append(cfg.transportConfigurators, fn)
		}
	}
}

// WithTLSConfig sets the TLS configuration of the pooled transport.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.tlsConfig = tlsCfg
	}
}

// WithProxyURL routes every request through the given proxy.
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.proxyURL = proxyURL
	}
}

// WithProxyFromEnvironment toggles HTTP_PROXY/HTTPS_PROXY/NO_PROXY support.
// Enabled by default.
func WithProxyFromEnvironment(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.proxyFromEnvironment = enabled
	}
}

// WithDecompression toggles the handler that negotiates and decodes gzip and
// deflate bodies. Enabled by default.
func WithDecompression(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.decompression = enabled
	}
}

// WithCoalescing shares one in-flight round trip between identical
// concurrent GET requests.
func WithCoalescing(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.coalescing = enabled
	}
}

// WithBreaker installs a circuit breaker handler.
func WithBreaker(c BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.breakerConfig = &c
	}
}

// WithDistributedBreaker installs a circuit breaker whose state is shared
// through Redis by every client using the same service name.
func WithDistributedBreaker(client redis.UniversalClient) Option {
	return WithBreaker(DistributedBreakerConfig(NewRedisStore(client)))
}

// WithRateLimit installs a token bucket in front of the network send.
func WithRateLimit(c RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.rateLimitConfig = &c
	}
}

// WithServiceName names the client in spans, metrics and the breaker.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.serviceName = name
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.meterProvider = mp
		}
	}
}

// WithPropagators sets the propagators used to inject trace context.
// Defaults to W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		if p != nil {
			cfg.propagators = p
		}
	}
}

// WithLogger logs every round trip: debug for success, warn for 4xx/5xx
// and transport errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.logger = &logger
	}
}

// WithDebug logs request and response details at debug level. Without
// WithLogger a stdout logger is used.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.debug = enabled
	}
}

// WithGenerateCurl adds an equivalent curl command to debug request logs.
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.generateCurl = enabled
	}
}

// WithMockTransport replaces the network send with mock. Intended for
// tests.
func WithMockTransport(mock *MockTransport) Option {
	return func(cfg *internalConfig) {
		cfg.root = mock
	}
}
