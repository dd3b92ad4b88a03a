package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCurlCommand(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		header http.Header
		body   string
		want   string
	}{
		{
			name:   "given plain GET, then omits method flag",
			method: http.MethodGet,
			target: "https://api.example.com/users?page=2",
			want:   "curl 'https://api.example.com/users?page=2'",
		},
		{
			name:   "given bearer token, then masks credentials",
			method: http.MethodGet,
			target: "https://api.example.com/me",
			header: http.Header{"Authorization": {"Bearer secret-token"}, "Accept": {"application/json"}},
			want:   "curl 'https://api.example.com/me' -H 'Accept: application/json' -H 'Authorization: Bearer ***'",
		},
		{
			name:   "given POST with quoted body, then escapes quotes",
			method: http.MethodPost,
			target: "https://api.example.com/users",
			body:   `{"name":"O'Brien"}`,
			want:   `curl -X POST 'https://api.example.com/users' -d '{"name":"O'\''Brien"}'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.target, nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}

			assert.Equal(t, tt.want, generateCurlCommand(req, []byte(tt.body)))
		})
	}
}

func TestMaskCredentials(t *testing.T) {
	assert.Equal(t, "Basic ***", maskCredentials("Basic dXNlcjpwYXNz"))
	assert.Equal(t, "***", maskCredentials("raw-token"))
}

func TestWithLogger(t *testing.T) {
	tests := []struct {
		name      string
		mock      *MockTransport
		debug     bool
		wantLevel string
		wantParts []string
	}{
		{
			name:      "given success without debug, then logs response at debug",
			mock:      NewMockTransport().StubResponse(http.StatusOK, "ok"),
			wantLevel: `"level":"debug"`,
			wantParts: []string{`"status":200`, `"client":"orders"`},
		},
		{
			name:      "given server error, then logs at warn",
			mock:      NewMockTransport().StubResponse(http.StatusBadGateway, ""),
			wantLevel: `"level":"warn"`,
			wantParts: []string{`"status":502`},
		},
		{
			name:      "given transport error, then logs failure at warn",
			mock:      NewMockTransport().StubError(errors.New("connection reset")),
			wantLevel: `"level":"warn"`,
			wantParts: []string{"HTTP request failed", "connection reset"},
		},
		{
			name:      "given debug with curl, then logs the request",
			mock:      NewMockTransport().StubResponse(http.StatusOK, "ok"),
			debug:     true,
			wantLevel: `"level":"debug"`,
			wantParts: []string{"HTTP request", `"curl":"curl 'http://api.local/orders'`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := newTestClient(t,
				WithBaseURL("http://api.local"),
				WithServiceName("orders"),
				WithMockTransport(tt.mock),
				WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)),
				WithDebug(tt.debug),
				WithGenerateCurl(tt.debug),
			)

			req, _ := http.NewRequest(http.MethodGet, "/orders", nil)
			resp, err := c.Send(context.Background(), req)
			if err == nil {
				resp.Body.Close()
			}

			out := buf.String()
			require.NotEmpty(t, out)
			assert.Contains(t, out, tt.wantLevel)
			for _, part := range tt.wantParts {
				assert.True(t, strings.Contains(out, part), "missing %q in %s", part, out)
			}
		})
	}
}
