package requester

import (
	"errors"
	"fmt"
)

// ErrNilParameters is returned when a templated call gets nil parameters.
// Pass an empty uritemplate.Params to bind nothing.
var ErrNilParameters = errors.New("requester: parameters must not be nil")

// ErrNilSender is returned by New without a Sender.
var ErrNilSender = errors.New("requester: sender must not be nil")

// ErrNilModifier is returned by Requester.With for a nil modifier.
var ErrNilModifier = errors.New("requester: modifier must not be nil")

// ArgumentError reports an invalid argument, detected before any request
// is sent.
type ArgumentError struct {
	Name    string
	Message string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("requester: invalid argument %s: %s", e.Name, e.Message)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// IsArgumentError reports whether err is or wraps an *ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return errors.As(err, &argErr)
}

func argumentError(name string, err error) error {
	return &ArgumentError{Name: name, Message: err.Error(), Err: err}
}
