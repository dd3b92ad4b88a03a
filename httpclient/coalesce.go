package httpclient

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// coalesceHeaders are the request headers that make two otherwise equal
// requests distinct.
var coalesceHeaders = []string{"Authorization", "Accept", "Accept-Language", "Cookie"}

// coalesceTransport lets concurrent identical GET and HEAD requests share
// one round trip. The leader's body is buffered and every caller receives
// its own copy. Cancellation of the leader's context fails the followers
// too.
type coalesceTransport struct {
	next  http.RoundTripper
	group *singleflight.Group
	cfg   *internalConfig
}

type sharedResponse struct {
	resp *http.Response
	body []byte
}

func newCoalescingHandler(cfg *internalConfig) Handler {
	group := &singleflight.Group{}
	return func(next http.RoundTripper) http.RoundTripper {
		return &coalesceTransport{next: next, group: group, cfg: cfg}
	}
}

// RoundTrip implements http.RoundTripper.
func (t *coalesceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return t.next.RoundTrip(req)
	}

	v, err, shared := t.group.Do(coalesceKey(req), func() (interface{}, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &sharedResponse{resp: resp, body: body}, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		t.cfg.metrics.recordCoalesced(req.Context(), t.cfg.baseAttributes())
	}

	return v.(*sharedResponse).copyFor(req), nil
}

// Unwrap returns the next round tripper.
func (t *coalesceTransport) Unwrap() http.RoundTripper {
	return t.next
}

func (s *sharedResponse) copyFor(req *http.Request) *http.Response {
	out := *s.resp
	out.Header = s.resp.Header.Clone()
	out.Body = io.NopCloser(bytes.NewReader(s.body))
	out.ContentLength = int64(len(s.body))
	out.Request = req
	return &out
}

// coalesceKey hashes the method, the URL with sorted query parameters and
// the identity-bearing headers.
func coalesceKey(req *http.Request) string {
	u := *req.URL
	query := u.Query()
	sortedParams := make([]string, 0, len(query))
	for key, values := range query {
		values = append([]string(nil), values...)
		sort.Strings(values)
		for _, v := range values {
			sortedParams = append(sortedParams, key+"="+v)
		}
	}
	sort.Strings(sortedParams)
	u.RawQuery = ""

	keyParts := []string{req.Method, u.String(), strings.Join(sortedParams, "&")}
	for _, h := range coalesceHeaders {
		keyParts = append(keyParts, strings.Join(req.Header.Values(h), ","))
	}

	hash := sha256.Sum256([]byte(strings.Join(keyParts, "|")))
	return hex.EncodeToString(hash[:])
}
