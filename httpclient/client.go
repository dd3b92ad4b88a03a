package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client sends requests relative to a base address through the configured
// handler chain. It is safe for concurrent use; its configuration is fixed
// at construction.
type Client struct {
	// httpClient is the underlying HTTP client with the handler chain.
	httpClient *http.Client

	// transport is the pooled transport, nil when the root was replaced.
	transport *http.Transport

	baseURL        *url.URL
	defaultHeaders http.Header
	timeout        time.Duration

	lease         *leaseRecycler
	leaseInterval time.Duration
	closeOnce     sync.Once
}

// New creates a Client. It fails with ErrMissingBaseAddress when no base
// address was given and with a *ConfigError for any other invalid setting.
//
//	client, err := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithTimeout(5*time.Second),
//	    httpclient.WithServiceName("payment-service"),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := newConfig(opts...)

	base, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	headers := cfg.defaultHeaders.Clone()
	if !cfg.userAgent.IsZero() {
		headers.Set("User-Agent", cfg.userAgent.String())
	}

	root := cfg.root
	var transport *http.Transport
	if root == nil {
		transport = cfg.buildTransport()
		root = transport
	}

	c := &Client{
		httpClient:     &http.Client{Transport: cfg.buildChain(root)},
		transport:      transport,
		baseURL:        base,
		defaultHeaders: headers,
		timeout:        cfg.httpConfig.Timeout,
	}

	if transport != nil && cfg.httpConfig.ConnectionLease > 0 {
		attrs := cfg.baseAttributes()
		c.leaseInterval = cfg.httpConfig.ConnectionLease
		c.lease = startLeaseRecycler(transport, cfg.httpConfig.ConnectionLease, func() {
			cfg.metrics.recordConnectionRecycle(context.Background(), attrs)
		})
	}

	return c, nil
}

// Send resolves req against the base address, adds the default headers the
// request does not set itself, and performs one round trip bounded by the
// client timeout.
//
// req is not modified. A 4xx/5xx status is returned as a response, not an
// error. A timeout surfaces as an error matching context.DeadlineExceeded.
func (c *Client) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errNilRequest
	}

	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	out := req.Clone(ctx)
	target, err := c.resolve(req.URL)
	if err != nil {
		cancel()
		return nil, err
	}
	out.URL = target
	out.Host = ""

	if out.Header == nil {
		out.Header = make(http.Header)
	}
	for k, vs := range c.defaultHeaders {
		if _, ok := out.Header[k]; !ok {
			out.Header[k] = append([]string(nil), vs...)
		}
	}

	resp, err := c.httpClient.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// ResolveURL returns the absolute URL for a path relative to the base
// address. The base path is kept: base "https://h/api" and path "/items"
// give "https://h/api/items".
func (c *Client) ResolveURL(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	return c.resolve(ref)
}

func (c *Client) resolve(ref *url.URL) (*url.URL, error) {
	if ref == nil {
		return c.baseURL, nil
	}
	if ref.IsAbs() {
		return ref, nil
	}
	rel := ref.String()
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return url.Parse(strings.TrimRight(c.baseURL.String(), "/") + rel)
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Timeout returns the per-attempt timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// DefaultHeaders returns a copy of the headers added to every request.
func (c *Client) DefaultHeaders() http.Header {
	return c.defaultHeaders.Clone()
}

// HTTP returns the underlying *http.Client with the full handler chain.
// Requests sent through it skip base address resolution, default headers
// and the client timeout.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Close stops the connection lease recycler and closes idle connections.
// The client must not be used afterwards.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.lease != nil {
			c.lease.Stop()
		}
		if c.transport != nil {
			c.transport.CloseIdleConnections()
		}
	})
	return nil
}

// cancelOnClose releases the per-attempt timeout once the caller is done
// with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
