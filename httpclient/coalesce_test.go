package httpclient

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCoalesceKey(t *testing.T) {
	newReq := func(method, target string, header http.Header) *http.Request {
		req, _ := http.NewRequest(method, target, nil)
		for k, v := range header {
			req.Header[k] = v
		}
		return req
	}

	tests := []struct {
		name  string
		a, b  *http.Request
		equal bool
	}{
		{
			name:  "given reordered query, then same key",
			a:     newReq(http.MethodGet, "http://api.local/items?b=2&a=1", nil),
			b:     newReq(http.MethodGet, "http://api.local/items?a=1&b=2", nil),
			equal: true,
		},
		{
			name:  "given unrelated header, then same key",
			a:     newReq(http.MethodGet, "http://api.local/items", http.Header{"X-Request-Id": {"1"}}),
			b:     newReq(http.MethodGet, "http://api.local/items", http.Header{"X-Request-Id": {"2"}}),
			equal: true,
		},
		{
			name:  "given different credentials, then different key",
			a:     newReq(http.MethodGet, "http://api.local/items", http.Header{"Authorization": {"Bearer a"}}),
			b:     newReq(http.MethodGet, "http://api.local/items", http.Header{"Authorization": {"Bearer b"}}),
			equal: false,
		},
		{
			name:  "given different method, then different key",
			a:     newReq(http.MethodGet, "http://api.local/items", nil),
			b:     newReq(http.MethodHead, "http://api.local/items", nil),
			equal: false,
		},
		{
			name:  "given different path, then different key",
			a:     newReq(http.MethodGet, "http://api.local/items/1", nil),
			b:     newReq(http.MethodGet, "http://api.local/items/2", nil),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, coalesceKey(tt.a) == coalesceKey(tt.b))
		})
	}
}

func TestWithCoalescing_SharesConcurrentGets(t *testing.T) {
	const callers = 10

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	mt := NewMockTransport().
		StubResponse(http.StatusOK, "shared").
		OnRequest(func(*http.Request) {
			once.Do(func() { close(entered) })
			<-release
		})

	c := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithMockTransport(mt),
		WithCoalescing(true),
	)

	get := func() error {
		req, _ := http.NewRequest(http.MethodGet, "/items", nil)
		resp, err := c.Send(context.Background(), req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		assert.Equal(t, "shared", string(body))
		return nil
	}

	var g errgroup.Group
	g.Go(get)
	<-entered
	for range callers - 1 {
		g.Go(get)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, g.Wait())
	assert.Less(t, mt.RequestCount(), callers, "followers joined the leader's round trip")
}

func TestWithCoalescing_SkipsUnsafeMethods(t *testing.T) {
	mt := NewMockTransport().StubResponse(http.StatusCreated, "")
	c := newTestClient(t,
		WithBaseURL("http://api.local"),
		WithMockTransport(mt),
		WithCoalescing(true),
	)

	var g errgroup.Group
	for range 5 {
		g.Go(func() error {
			req, _ := http.NewRequest(http.MethodPost, "/items", nil)
			resp, err := c.Send(context.Background(), req)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, 5, mt.RequestCount())
}
