package httpclient

import "net/http"

// Handler wraps the next round tripper in the chain.
//
//	stamp := func(next http.RoundTripper) http.RoundTripper {
//	    return httpclient.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
//	        req.Header.Set("X-Tenant", tenant)
//	        return next.RoundTrip(req)
//	    })
//	}
type Handler func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain wraps root with handlers so that handlers[0] is the outermost.
func Chain(root http.RoundTripper, handlers ...Handler) http.RoundTripper {
	rt := root
	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i] != nil {
			rt = handlers[i](rt)
		}
	}
	return rt
}

// buildChain assembles the built-in handlers around the user handlers.
func (cfg *internalConfig) buildChain(root http.RoundTripper) http.RoundTripper {
	handlers := make([]Handler, 0, len(cfg.handlers)+6)

	handlers = append(handlers, newOtelHandler(cfg))
	if cfg.logger != nil || cfg.debug {
		handlers = append(handlers, newLoggingHandler(cfg))
	}
	if cfg.coalescing {
		handlers = append(handlers, newCoalescingHandler(cfg))
	}
	if cfg.rateLimitConfig != nil {
		handlers = append(handlers, newRateLimitHandler(*cfg.rateLimitConfig, cfg))
	}
	if cfg.breakerConfig != nil {
		handlers = append(handlers, newBreakerHandler(cfg))
	}
	handlers = append(handlers, cfg.handlers...)
	if cfg.decompression {
		handlers = append(handlers, newDecompressionTransport)
	}

	return Chain(root, handlers...)
}
