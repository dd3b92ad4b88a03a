package retry

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// Classifier decides how an attempt's result feeds the retry loop.
//
// The classifier receives both the response and error. Exactly one of them
// is normally non-nil.
type Classifier func(resp *http.Response, err error) Kind

// DefaultRetryableStatusCodes is the canonical set of statuses retried when
// the caller opts into retries. It intentionally includes 400, 403 and 409.
var DefaultRetryableStatusCodes = []int{
	http.StatusBadGateway,
	http.StatusConflict,
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusGatewayTimeout,
	http.StatusInternalServerError,
	http.StatusRequestTimeout,
	http.StatusServiceUnavailable,
}

// DefaultClassifier retries transient errors (timeouts and cancellations)
// and the statuses in DefaultRetryableStatusCodes. Every other error is
// fatal and every other response is a success.
var DefaultClassifier = StatusCodeClassifier(DefaultRetryableStatusCodes...)

// StatusCodeClassifier returns a classifier that retries transient errors
// and responses whose status is one of codes.
//
// Example:
//
//	// Only gateway errors
//	classifier := retry.StatusCodeClassifier(502, 503, 504)
func StatusCodeClassifier(codes ...int) Classifier {
	codeSet := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		codeSet[code] = struct{}{}
	}

	return func(resp *http.Response, err error) Kind {
		if err != nil {
			if IsTransient(err) {
				return Retryable
			}
			return Fatal
		}
		if resp != nil {
			if _, ok := codeSet[resp.StatusCode]; ok {
				return Retryable
			}
		}
		return Success
	}
}

// NetworkClassifier extends StatusCodeClassifier by also retrying
// connection-level failures such as refused or reset connections. TLS
// certificate failures and unknown hosts stay fatal.
func NetworkClassifier(codes ...int) Classifier {
	byStatus := StatusCodeClassifier(codes...)

	return func(resp *http.Response, err error) Kind {
		if err != nil && !IsTransient(err) {
			if isPermanentError(err) {
				return Fatal
			}
			if isRetryableNetworkError(err) {
				return Retryable
			}
		}
		return byStatus(resp, err)
	}
}

// NeverRetry classifies every result as final.
func NeverRetry(_ *http.Response, err error) Kind {
	if err != nil {
		return Fatal
	}
	return Success
}

// IsTransient reports whether err is a timeout or a cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRetryableNetworkError returns true for connection failures that are
// typically transient.
func isRetryableNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	return containsAny(err, "connection refused", "connection reset",
		"broken pipe", "server closed", "eof")
}

// isPermanentError returns true for errors that cannot succeed on retry.
func isPermanentError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}

	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EHOSTDOWN) {
		return true
	}

	return containsAny(err, "x509:", "certificate", "tls:", "permission denied")
}

// containsAny is a fallback for wrapped errors that defeat type checks.
func containsAny(err error, patterns ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
