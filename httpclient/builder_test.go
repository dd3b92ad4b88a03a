package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kroma-labs/httprequester/useragent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler appends its name on the way in and out.
func recordingHandler(name string, mu *sync.Mutex, trail *[]string) Handler {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			*trail = append(*trail, name+">")
			mu.Unlock()

			resp, err := next.RoundTrip(req)

			mu.Lock()
			*trail = append(*trail, "<"+name)
			mu.Unlock()
			return resp, err
		})
	}
}

func TestBuilder_Create(t *testing.T) {
	tests := []struct {
		name    string
		builder func() *Builder
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "given no base address, then returns configuration error",
			builder: func() *Builder { return NewBuilder().Timeout(time.Second) },
			wantErr: func(t assert.TestingT, err error, _ ...interface{}) bool {
				return assert.ErrorIs(t, err, ErrMissingBaseAddress) && assert.True(t, IsConfigError(err))
			},
		},
		{
			name: "given every setter, then creates client",
			builder: func() *Builder {
				return NewBuilder().
					BaseAddress("http://localhost:8080").
					Timeout(time.Second).
					ConnectionLease(time.Minute).
					Header("Accept", "application/json").
					Headers(http.Header{"X-Team": {"payments"}}).
					UserAgent(useragent.New("App", "1.0.0")).
					Handler(func(next http.RoundTripper) http.RoundTripper { return next }).
					ConfigureTransport(func(tr *http.Transport) { tr.MaxIdleConnsPerHost = 3 }).
					With(WithServiceName("payments"))
			},
			wantErr: assert.NoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.builder().Create()

			tt.wantErr(t, err)
			if err == nil {
				defer c.Close()
				assert.Equal(t, "http://localhost:8080", c.BaseURL())
				assert.Equal(t, time.Second, c.Timeout())
				assert.Equal(t, 3, c.PoolStats().MaxIdleConnsPerHost)
				assert.Equal(t, "App/1.0.0", c.DefaultHeaders().Get("User-Agent"))
				assert.Equal(t, "payments", c.DefaultHeaders().Get("X-Team"))
			}
		})
	}
}

func TestBuilder_HandlerOrder(t *testing.T) {
	var mu sync.Mutex
	var trail []string

	mock := NewMockTransport().
		StubResponse(http.StatusOK, "ok").
		OnRequest(func(*http.Request) {
			mu.Lock()
			trail = append(trail, "send")
			mu.Unlock()
		})

	c, err := NewBuilder().
		BaseAddress("http://api.local").
		Handler(recordingHandler("first", &mu, &trail)).
		Handler(recordingHandler("second", &mu, &trail)).
		Handler(recordingHandler("third", &mu, &trail)).
		With(WithMockTransport(mock)).
		Create()
	require.NoError(t, err)
	defer c.Close()

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	resp, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{
		"first>", "second>", "third>", "send", "<third", "<second", "<first",
	}, trail)
}

func TestBuilder_CacheHandlerReplacesRoot(t *testing.T) {
	var networkHits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		networkHits++
		_, _ = io.WriteString(w, "network")
	}))
	defer server.Close()

	cache := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"X-Cache": {"HIT"}},
			Body:       io.NopCloser(strings.NewReader("cached " + req.URL.Path)),
			Request:    req,
		}, nil
	})

	c, err := NewBuilder().BaseAddress(server.URL).CacheHandler(cache).Create()
	require.NoError(t, err)
	defer c.Close()

	req, _ := http.NewRequest(http.MethodGet, "/items", nil)
	resp, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "cached /items", string(body))
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Zero(t, networkHits)
	assert.True(t, c.PoolStats().Replaced)
}

func TestBuilder_LaterChangesDoNotAffectCreatedClient(t *testing.T) {
	b := NewBuilder().BaseAddress("http://first.local")
	c, err := b.Create()
	require.NoError(t, err)
	defer c.Close()

	b.BaseAddress("http://second.local").Header("X-Late", "1")

	assert.Equal(t, "http://first.local", c.BaseURL())
	assert.Empty(t, c.DefaultHeaders().Get("X-Late"))
}

func TestChain(t *testing.T) {
	var mu sync.Mutex
	var trail []string

	root := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody}, nil
	})
	rt := Chain(root,
		recordingHandler("a", &mu, &trail),
		nil,
		recordingHandler("b", &mu, &trail),
	)

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := rt.RoundTrip(req)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, trail)
}
