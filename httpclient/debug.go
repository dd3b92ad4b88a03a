package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// debugLogger is used by WithDebug when no logger was given.
var debugLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// loggingTransport logs each round trip. Responses below 400 are logged at
// debug level, 4xx/5xx and transport errors at warn.
type loggingTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
	debug  bool
	curl   bool
}

func newLoggingHandler(cfg *internalConfig) Handler {
	logger := debugLogger
	if cfg.logger != nil {
		logger = *cfg.logger
	}
	if cfg.serviceName != "" {
		logger = logger.With().Str("client", cfg.serviceName).Logger()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return &loggingTransport{
			next:   next,
			logger: logger,
			debug:  cfg.debug,
			curl:   cfg.generateCurl,
		}
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	if t.debug {
		ev := t.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int64("content_length", req.ContentLength)
		if t.curl {
			ev = ev.Str("curl", generateCurlCommand(req, peekBody(req)))
		}
		ev.Msg("HTTP request")
	}

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("duration", duration).
			Msg("HTTP request failed")
		return nil, err
	}

	ev := t.logger.Debug()
	if resp.StatusCode >= 400 {
		ev = t.logger.Warn()
	}
	ev.Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")

	return resp, nil
}

// Unwrap returns the next round tripper.
func (t *loggingTransport) Unwrap() http.RoundTripper {
	return t.next
}

// peekBody reads a replayable copy of the request body without consuming
// the original.
func peekBody(req *http.Request) []byte {
	if req.GetBody == nil || req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil
	}
	return buf.Bytes()
}

// generateCurlCommand creates a cURL command equivalent for the given
// request. Credentials in the Authorization header are masked:
//
//	curl -X POST 'https://api.example.com/users' -H 'Authorization: Bearer ***' -d '{"name":"John"}'
func generateCurlCommand(req *http.Request, body []byte) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	parts = append(parts, fmt.Sprintf("'%s'", req.URL.String()))

	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			if k == "Authorization" {
				v = maskCredentials(v)
			}
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	if len(body) > 0 {
		bodyStr := strings.ReplaceAll(string(body), "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}

func maskCredentials(value string) string {
	if scheme, _, ok := strings.Cut(value, " "); ok {
		return scheme + " ***"
	}
	return "***"
}
