package httpclient

import (
	"net/http"
	"time"

	"github.com/kroma-labs/httprequester/useragent"
)

// Builder collects client settings through independent setters and freezes
// them with Create. A Builder is not safe for concurrent use; the Client it
// creates is.
//
//	client, err := httpclient.NewBuilder().
//	    BaseAddress("https://api.example.com").
//	    Timeout(10 * time.Second).
//	    Header("Accept", "application/json").
//	    Handler(audit).
//	    Create()
type Builder struct {
	opts []Option
}

// NewBuilder returns a Builder seeded with opts.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: append([]Option(nil), opts...)}
}

func (b *Builder) add(opt Option) *Builder {
	b.opts = append(b.opts, opt)
	return b
}

// BaseAddress sets the address relative paths are resolved against.
func (b *Builder) BaseAddress(baseURL string) *Builder {
	return b.add(WithBaseURL(baseURL))
}

// Timeout bounds each attempt.
func (b *Builder) Timeout(d time.Duration) *Builder {
	return b.add(WithTimeout(d))
}

// ConnectionLease recycles pooled connections on the given interval. Zero
// never recycles.
func (b *Builder) ConnectionLease(d time.Duration) *Builder {
	return b.add(WithConnectionLease(d))
}

// Header adds a default header; a repeated key keeps the last value.
func (b *Builder) Header(key, value string) *Builder {
	return b.add(WithHeader(key, value))
}

// Headers merges default headers.
func (b *Builder) Headers(h http.Header) *Builder {
	return b.add(WithHeaders(h))
}

// UserAgent sets the User-Agent header from a composed value.
func (b *Builder) UserAgent(ua useragent.UserAgent) *Builder {
	return b.add(WithUserAgent(ua))
}

// Handler appends a handler. The first handler added is the outermost.
func (b *Builder) Handler(h Handler) *Builder {
	return b.add(WithHandler(h))
}

// CacheHandler replaces the pooled transport with rt.
func (b *Builder) CacheHandler(rt http.RoundTripper) *Builder {
	return b.add(WithCacheHandler(rt))
}

// ConfigureTransport adjusts the pooled transport once it is built.
func (b *Builder) ConfigureTransport(fn func(*http.Transport)) *Builder {
	return b.add(WithTransportConfigurator(fn))
}

// With appends arbitrary options.
func (b *Builder) With(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Create builds the Client. Later changes to the Builder do not affect it.
func (b *Builder) Create() (*Client, error) {
	return New(b.opts...)
}
