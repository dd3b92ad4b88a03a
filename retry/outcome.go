package retry

import (
	"fmt"
	"net/http"
)

// Kind classifies the result of a single attempt.
type Kind int

const (
	// Success means the attempt produced a final result, whatever its status.
	Success Kind = iota
	// Retryable means the attempt failed transiently and may be repeated.
	Retryable
	// Fatal means the attempt failed and must not be repeated.
	Fatal
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of Policy.Execute.
//
// When retries are exhausted on a retryable status, Response holds the last
// response and Err is nil: status codes are data, not errors. When they are
// exhausted on a transient error, Err holds that error unchanged.
type Outcome struct {
	Kind     Kind
	Response *http.Response
	Err      error

	// Attempts is the number of times the operation was invoked.
	Attempts int
}

// statusError carries a retryable status code through the backoff loop.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.code)
}
