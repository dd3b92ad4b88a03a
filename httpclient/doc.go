// Package httpclient builds the transport that every requester call goes
// through: a base address, a per-attempt timeout, default headers, a
// connection lease and an ordered chain of handlers around an
// *http.Transport.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    BaseAddress("https://api.example.com").
//	    Timeout(5 * time.Second).
//	    ConnectionLease(time.Minute).
//	    Header("Accept", "application/json").
//	    UserAgent(useragent.New("billing", "1.4.0")).
//	    Create()
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	req, _ := http.NewRequest(http.MethodGet, "/invoices/42", nil)
//	resp, err := client.Send(ctx, req)
//
// Paths are resolved against the base address at send time, so the base
// address may carry a path prefix ("https://host/api/v2").
//
// # Handler Chain
//
// Handlers wrap the next http.RoundTripper. The first registered handler is
// the outermost one and the network send is always innermost:
//
//	otel -> logging -> coalescing -> rate limit -> breaker -> user handlers -> decompression -> root
//
// The root is the pooled *http.Transport unless a cache handler or a
// MockTransport replaces it.
//
// # Configuration Presets
//
//	httpclient.New(httpclient.WithConfig(httpclient.HighThroughputConfig()), ...)
//	httpclient.New(httpclient.WithConfig(httpclient.LowLatencyConfig()), ...)
//	httpclient.New(httpclient.WithConfig(httpclient.ConservativeConfig()), ...)
//
// # Resilience
//
// A circuit breaker (local or shared through Redis) and a token bucket rate
// limiter are available as built-in handlers:
//
//	httpclient.New(
//	    httpclient.WithBaseURL(base),
//	    httpclient.WithBreaker(httpclient.DefaultBreakerConfig()),
//	    httpclient.WithRateLimit(httpclient.DefaultRateLimitConfig()),
//	)
//
// Retries are not a transport concern here; see package retry.
package httpclient
