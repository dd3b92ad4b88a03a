package requester

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/kroma-labs/httprequester/uritemplate"
)

// RequestSpec describes one request. It is immutable: every With method
// returns a modified copy, and each retry attempt materializes a fresh
// *http.Request from the same spec.
//
//	spec := requester.NewRequestSpec(http.MethodPost, "orders/{id}/notes").
//	    WithParams(uritemplate.Of("id", "42")).
//	    WithBody(requester.Text("ship today")).
//	    WithAuth("Bearer", token)
type RequestSpec struct {
	method        string
	target        string
	params        uritemplate.Params
	templated     bool
	body          []byte
	header        http.Header
	authorization string
}

// NewRequestSpec creates a spec for a literal target. An empty method
// means GET.
func NewRequestSpec(method, target string) RequestSpec {
	if method == "" {
		method = http.MethodGet
	}
	return RequestSpec{
		method: method,
		target: target,
		header: make(http.Header),
	}
}

func (s RequestSpec) Method() string { return s.method }

func (s RequestSpec) Target() string { return s.target }

// Params returns a copy of the template parameters, nil for a literal
// target.
func (s RequestSpec) Params() uritemplate.Params {
	if !s.templated {
		return nil
	}
	return append(uritemplate.Params{}, s.params...)
}

// Body returns a copy of the body.
func (s RequestSpec) Body() []byte {
	return bytes.Clone(s.body)
}

// Header returns a copy of the headers.
func (s RequestSpec) Header() http.Header {
	return s.header.Clone()
}

// Authorization returns the Authorization value set by WithAuth or
// WithAuthorization.
func (s RequestSpec) Authorization() string {
	return s.authorization
}

func (s RequestSpec) WithMethod(method string) RequestSpec {
	s.method = method
	return s
}

// WithTarget replaces the target, keeping any template parameters.
func (s RequestSpec) WithTarget(target string) RequestSpec {
	s.target = target
	return s
}

// WithParams makes the target a template bound against params.
func (s RequestSpec) WithParams(params uritemplate.Params) RequestSpec {
	s.params = append(uritemplate.Params{}, params...)
	s.templated = true
	return s
}

// WithParam appends one template parameter. Unconsumed parameters end up
// in the query string.
func (s RequestSpec) WithParam(name, value string) RequestSpec {
	s.params = s.params.Add(name, value)
	s.templated = true
	return s
}

// WithHeader sets a header, replacing any earlier value for key.
func (s RequestSpec) WithHeader(key, value string) RequestSpec {
	s.header = s.header.Clone()
	if s.header == nil {
		s.header = make(http.Header)
	}
	s.header.Set(key, value)
	return s
}

// WithBody sets the body and its Content-Type.
func (s RequestSpec) WithBody(b Body) RequestSpec {
	s.body = bytes.Clone(b.Data)
	if b.ContentType != "" {
		s = s.WithHeader("Content-Type", b.ContentType)
	}
	return s
}

// WithAuth sets "Authorization: <scheme> <token>".
func (s RequestSpec) WithAuth(scheme, token string) RequestSpec {
	return s.WithAuthorization(strings.TrimSpace(scheme + " " + token))
}

// WithAuthorization sets the raw Authorization value.
func (s RequestSpec) WithAuthorization(value string) RequestSpec {
	s.authorization = value
	return s
}

// URI binds the target. A literal target is only normalized to start
// with "/"; absolute URLs are returned unchanged.
func (s RequestSpec) URI() (string, error) {
	if isAbsolute(s.target) {
		return s.target, nil
	}
	if !s.templated {
		return "/" + strings.TrimLeft(s.target, "/"), nil
	}
	return uritemplate.Build(s.target, s.params)
}

// NewRequest materializes the request. Every call returns an independent
// request with its own body reader.
func (s RequestSpec) NewRequest(ctx context.Context) (*http.Request, error) {
	uri, err := s.URI()
	if err != nil {
		return nil, err
	}

	var body *bytes.Reader
	if s.body != nil {
		body = bytes.NewReader(s.body)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, s.method, uri, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, s.method, uri, nil)
	}
	if err != nil {
		return nil, err
	}

	req.Header = s.header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if s.authorization != "" {
		req.Header.Set("Authorization", s.authorization)
	}

	return req, nil
}

// resolved returns a literal spec for an already bound uri.
func (s RequestSpec) resolved(uri string) RequestSpec {
	s.target = uri
	s.params = nil
	s.templated = false
	return s
}

func isAbsolute(target string) bool {
	u, err := url.Parse(target)
	return err == nil && u.IsAbs() && u.Host != ""
}
