package s3http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Response is produced by an operation and written back by the transport.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       Body
}

// NewResponse returns a response with the given status and an empty body.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status, Header: make(http.Header)}
}

// XMLResponse returns a response carrying an XML document.
func XMLResponse(status int, doc []byte) *Response {
	res := NewResponse(status)
	res.Header.Set("Content-Type", "application/xml")
	res.Body = Bytes(doc)
	return res
}

func (res *Response) status() int {
	if res.StatusCode == 0 {
		return http.StatusOK
	}
	return res.StatusCode
}

func (res *Response) contentLength() int64 {
	if cl := res.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return res.Body.Size()
}

// Write sends the response to w. For HEAD requests only the headers are
// written. The body is closed in every case.
func (res *Response) Write(w http.ResponseWriter, method string) error {
	defer func() { _ = res.Body.Close() }()

	h := w.Header()
	for k, v := range res.Header {
		h[k] = v
	}
	if n := res.contentLength(); n >= 0 && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}
	w.WriteHeader(res.status())

	if method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, res.Body.Reader()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// HTTP converts the response for a client transport. req is attached as the
// originating request.
func (res *Response) HTTP(req *http.Request) *http.Response {
	status := res.status()
	header := res.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	body := res.Body.ReadCloser()
	length := res.contentLength()
	if req != nil && req.Method == http.MethodHead {
		_ = res.Body.Close()
		body = http.NoBody
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: length,
		Request:       req,
	}
}

func (res *Response) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("status", res.status()),
		slog.Int64("content_length", res.contentLength()),
	)
}
