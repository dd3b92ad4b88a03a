package httpclient

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid client configuration. It is only returned
// while building a Client, never from Send.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("httpclient: invalid %s: %s", e.Field, e.Message)
}

// ErrMissingBaseAddress is returned by Create and New when no base address
// was configured.
var ErrMissingBaseAddress = &ConfigError{Field: "base_address", Message: "is required"}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

var errNilRequest = errors.New("httpclient: nil request")
