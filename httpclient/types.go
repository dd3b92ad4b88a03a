package httpclient

import "net/http"

//go:generate mockery --name=RoundTripper --output=./mocks --outpkg=mocks
//go:generate mockery --name=CircuitBreaker --output=./mocks --outpkg=mocks

// RoundTripper mirrors http.RoundTripper so a mock can be generated for it.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}
