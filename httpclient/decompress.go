package httpclient

import (
	"bufio"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// acceptEncoding is what the decompression handler advertises.
const acceptEncoding = "gzip, deflate, br"

// decompressionTransport negotiates compressed responses and decodes them.
// Requests that already carry Accept-Encoding are passed through untouched
// so callers can ask for the raw bytes.
type decompressionTransport struct {
	next http.RoundTripper
}

func newDecompressionTransport(next http.RoundTripper) http.RoundTripper {
	return &decompressionTransport{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *decompressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") != "" || req.Method == http.MethodHead {
		return t.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.Body == nil {
		return resp, err
	}

	var decode func(io.Reader) (io.ReadCloser, error)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		decode = func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		}
	case "deflate":
		decode = newDeflateReader
	case "br":
		decode = func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(brotli.NewReader(r)), nil
		}
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{body: resp.Body, decode: decode}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

// Unwrap returns the next round tripper.
func (t *decompressionTransport) Unwrap() http.RoundTripper {
	return t.next
}

// newDeflateReader accepts both zlib-wrapped deflate, which is what the
// HTTP "deflate" coding means, and the raw stream some servers send.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && isZlibHeader(header[0], header[1]) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isZlibHeader(cmf, flg byte) bool {
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// decodedBody creates the decoder on first read so an empty body with a
// Content-Encoding header reads as EOF instead of failing eagerly.
type decodedBody struct {
	body    io.ReadCloser
	decode  func(io.Reader) (io.ReadCloser, error)
	decoder io.ReadCloser
	err     error
}

func (d *decodedBody) Read(p []byte) (int, error) {
	if d.decoder == nil && d.err == nil {
		d.decoder, d.err = d.decode(d.body)
	}
	if d.err != nil {
		return 0, d.err
	}
	return d.decoder.Read(p)
}

func (d *decodedBody) Close() error {
	if d.decoder != nil {
		_ = d.decoder.Close()
	}
	return d.body.Close()
}
