package s3http

import (
	"bytes"
	"io"
	"net/http"
)

// Body is a message payload. The zero value is an empty body.
type Body struct {
	data   []byte
	stream io.ReadCloser
	size   int64
}

// Empty returns a body with no content.
func Empty() Body {
	return Body{}
}

// Bytes returns a complete body backed by b.
func Bytes(b []byte) Body {
	return Body{data: b, size: int64(len(b))}
}

// Stream returns a streamed body. size is the content length, or -1 when unknown.
func Stream(r io.ReadCloser, size int64) Body {
	if r == nil || r == http.NoBody {
		return Empty()
	}
	return Body{stream: r, size: size}
}

// Size returns the content length, or -1 when it is not known up front.
func (b Body) Size() int64 {
	if b.stream == nil && b.data == nil {
		return 0
	}
	return b.size
}

// Reader returns a reader over the payload. Streamed bodies can be read once.
func (b Body) Reader() io.Reader {
	if b.stream != nil {
		return b.stream
	}
	return bytes.NewReader(b.data)
}

// ReadCloser returns the payload as an io.ReadCloser suitable for net/http.
func (b Body) ReadCloser() io.ReadCloser {
	if b.stream != nil {
		return b.stream
	}
	if len(b.data) == 0 {
		return http.NoBody
	}
	return io.NopCloser(bytes.NewReader(b.data))
}

// Close releases a streamed body. It is a no-op for complete bodies.
func (b Body) Close() error {
	if b.stream == nil {
		return nil
	}
	return b.stream.Close()
}
