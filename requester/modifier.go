package requester

import (
	"github.com/google/uuid"
)

// DefaultCorrelationHeader is the header set by CorrelationID.
const DefaultCorrelationHeader = "X-Correlation-ID"

// Modifier transforms a RequestSpec before it is sent. Modifiers run once
// per call, in registration order, before default query parameters and
// authorization are applied. They should only touch headers or the
// target.
type Modifier func(RequestSpec) RequestSpec

// SetHeader sets a header on every request.
func SetHeader(key, value string) Modifier {
	return func(s RequestSpec) RequestSpec {
		return s.WithHeader(key, value)
	}
}

// AddParam appends a parameter to every request. Unlike default query
// parameters it is added even when the request already carries one with
// the same name.
func AddParam(name, value string) Modifier {
	return func(s RequestSpec) RequestSpec {
		return s.WithParam(name, value)
	}
}

// CorrelationID sets header to a fresh UUID unless the request already has
// one. All retry attempts of a call share the ID. An empty header means
// DefaultCorrelationHeader.
func CorrelationID(header string) Modifier {
	if header == "" {
		header = DefaultCorrelationHeader
	}
	return func(s RequestSpec) RequestSpec {
		if s.header.Get(header) != "" {
			return s
		}
		return s.WithHeader(header, uuid.NewString())
	}
}
