package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// MockTransport is a scripted http.RoundTripper for tests. Install it with
// WithMockTransport; it replaces the network send and keeps every handler
// above it.
//
//	mock := httpclient.NewMockTransport().
//	    StubSequence(http.StatusServiceUnavailable, http.StatusOK).
//	    StubPath("/health", http.StatusOK, "ok")
type MockTransport struct {
	mu       sync.Mutex
	stubs    []*stub
	fallback *stub
	requests []*http.Request
	hook     func(*http.Request)
}

type stub struct {
	matcher func(*http.Request) bool
	replies []reply
	served  int
}

type reply struct {
	status int
	body   string
	header http.Header
	err    error
}

// next returns the current reply and advances; the last reply repeats.
func (s *stub) next() reply {
	r := s.replies[min(s.served, len(s.replies)-1)]
	s.served++
	return r
}

// NewMockTransport creates an empty MockTransport. Unmatched requests fail.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse answers every unmatched request with the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{replies: []reply{{status: statusCode, body: body}}}
	return m
}

// StubError fails every unmatched request with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{replies: []reply{{err: err}}}
	return m
}

// StubSequence answers unmatched requests with the given statuses in order,
// repeating the last one. Bodies are the status text.
func (m *MockTransport) StubSequence(statusCodes ...int) *MockTransport {
	replies := make([]reply, 0, len(statusCodes))
	for _, code := range statusCodes {
		replies = append(replies, reply{status: code, body: http.StatusText(code)})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{replies: replies}
	return m
}

// StubErrorsThen fails the first n unmatched requests with err and answers
// the rest with statusCode.
func (m *MockTransport) StubErrorsThen(n int, err error, statusCode int, body string) *MockTransport {
	replies := make([]reply, 0, n+1)
	for range n {
		replies = append(replies, reply{err: err})
	}
	replies = append(replies, reply{status: statusCode, body: body})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &stub{replies: replies}
	return m
}

// StubPath answers requests for path.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubPathRegex answers requests whose path matches pattern.
func (m *MockTransport) StubPathRegex(pattern string, statusCode int, body string) *MockTransport {
	re := regexp.MustCompile(pattern)
	return m.StubFunc(func(req *http.Request) bool {
		return re.MatchString(req.URL.Path)
	}, statusCode, body)
}

// StubMethod answers requests with the given method.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, statusCode, body)
}

// StubFunc answers requests matching the predicate. Stubs are checked in
// registration order and the first match wins.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, &stub{
		matcher: matcher,
		replies: []reply{{status: statusCode, body: body}},
	})
	return m
}

// StubFuncError fails requests matching the predicate with err.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, &stub{matcher: matcher, replies: []reply{{err: err}}})
	return m
}

// OnRequest registers a hook called with every request before it is
// answered.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	hook := m.hook

	var r reply
	matched := false
	for _, s := range m.stubs {
		if s.matcher(req) {
			r, matched = s.next(), true
			break
		}
	}
	if !matched && m.fallback != nil {
		r, matched = m.fallback.next(), true
	}
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	if !matched {
		return nil, fmt.Errorf("httpclient: no stub for %s %s", req.Method, req.URL)
	}
	if r.err != nil {
		return nil, r.err
	}

	header := r.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.status, http.StatusText(r.status)),
		StatusCode:    r.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewBufferString(r.body)),
		ContentLength: int64(len(r.body)),
		Request:       req,
	}, nil
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.fallback = nil
	m.hook = nil
}
