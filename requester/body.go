package requester

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// Body is a request payload. The bytes are copied into the RequestSpec so
// every attempt sends the same content.
type Body struct {
	Data        []byte
	ContentType string
}

// Bytes creates a Body with an explicit content type.
func Bytes(data []byte, contentType string) Body {
	return Body{Data: data, ContentType: contentType}
}

// Text creates a UTF-8 plain text Body.
func Text(s string) Body {
	return Body{Data: []byte(s), ContentType: "text/plain; charset=utf-8"}
}

// JSON encodes v as a JSON Body.
func JSON(v any) (Body, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Body{}, fmt.Errorf("requester: encode json: %w", err)
	}
	return Body{Data: data, ContentType: "application/json"}, nil
}

// DecodeJSON decodes the response body into v and closes it. The status
// code is not checked.
func DecodeJSON(resp *http.Response, v any) error {
	if resp == nil || resp.Body == nil {
		return io.ErrUnexpectedEOF
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("requester: decode json: %w", err)
	}
	return nil
}

// readString reads and closes the body. A nil response reads as "".
func readString(resp *http.Response) (string, error) {
	if resp == nil || resp.Body == nil {
		return "", nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
