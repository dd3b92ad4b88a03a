package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = `{"message":"hello, compressed world"}`

func compress(t *testing.T, encoding string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.WriteCloser
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "raw-deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		require.NoError(t, err)
		w = fw
	case "br":
		w = brotli.NewWriter(&buf)
	default:
		return []byte(payload)
	}

	_, err := io.WriteString(w, payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompressionTransport(t *testing.T) {
	tests := []struct {
		name             string
		encoding         string
		header           string
		requestEncoding  string
		wantAccept       string
		wantBody         string
		wantDecompressed bool
	}{
		{
			name:             "given gzip response, then decodes body",
			encoding:         "gzip",
			header:           "gzip",
			wantAccept:       acceptEncoding,
			wantBody:         payload,
			wantDecompressed: true,
		},
		{
			name:             "given zlib deflate response, then decodes body",
			encoding:         "deflate",
			header:           "deflate",
			wantAccept:       acceptEncoding,
			wantBody:         payload,
			wantDecompressed: true,
		},
		{
			name:             "given raw deflate response, then decodes body",
			encoding:         "raw-deflate",
			header:           "deflate",
			wantAccept:       acceptEncoding,
			wantBody:         payload,
			wantDecompressed: true,
		},
		{
			name:             "given brotli response, then decodes body",
			encoding:         "br",
			header:           "br",
			wantAccept:       acceptEncoding,
			wantBody:         payload,
			wantDecompressed: true,
		},
		{
			name:       "given identity response, then passes body through",
			wantAccept: acceptEncoding,
			wantBody:   payload,
		},
		{
			name:            "given caller sets accept-encoding, then leaves response encoded",
			encoding:        "gzip",
			header:          "gzip",
			requestEncoding: "gzip",
			wantAccept:      "gzip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := compress(t, tt.encoding)

			var gotAccept string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccept = r.Header.Get("Accept-Encoding")
				if tt.header != "" {
					w.Header().Set("Content-Encoding", tt.header)
				}
				_, _ = w.Write(encoded)
			}))
			defer server.Close()

			c := newTestClient(t, WithBaseURL(server.URL))

			req, _ := http.NewRequest(http.MethodGet, "/content", nil)
			if tt.requestEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.requestEncoding)
			}

			resp, err := c.Send(context.Background(), req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantAccept, gotAccept)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, string(body))
			} else {
				assert.Equal(t, encoded, body)
			}
			assert.Equal(t, tt.wantDecompressed, resp.Uncompressed)
			if tt.wantDecompressed {
				assert.Empty(t, resp.Header.Get("Content-Encoding"))
				assert.Equal(t, int64(-1), resp.ContentLength)
			}
		})
	}
}

func TestDecompressionTransport_EmptyEncodedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, WithBaseURL(server.URL))

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	resp, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Empty(t, body)
}

func TestIsZlibHeader(t *testing.T) {
	assert.True(t, isZlibHeader(0x78, 0x9c))
	assert.True(t, isZlibHeader(0x78, 0x01))
	assert.False(t, isZlibHeader(0x1f, 0x8b))
}
