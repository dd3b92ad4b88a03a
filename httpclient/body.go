package httpclient

import (
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// wrappedBody counts the bytes read from a response body and ends the span
// at EOF or Close, whichever comes first.
type wrappedBody struct {
	span   trace.Span
	body   io.ReadCloser
	read   atomic.Int64
	closed atomic.Bool

	// onClose receives the total bytes read.
	onClose func(bytesRead int64)
}

func newWrappedBody(span trace.Span, body io.ReadCloser, onClose func(bytesRead int64)) io.ReadCloser {
	return &wrappedBody{
		span:    span,
		body:    body,
		onClose: onClose,
	}
}

func (w *wrappedBody) Read(p []byte) (int, error) {
	n, err := w.body.Read(p)
	w.read.Add(int64(n))

	switch err {
	case nil:
	case io.EOF:
		w.endSpan()
	default:
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
	}

	return n, err
}

func (w *wrappedBody) Close() error {
	w.endSpan()
	return w.body.Close()
}

// endSpan runs once; Close after EOF is a no-op.
func (w *wrappedBody) endSpan() {
	if w.closed.CompareAndSwap(false, true) {
		if w.onClose != nil {
			w.onClose(w.read.Load())
		}
		w.span.End()
	}
}
