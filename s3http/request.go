package s3http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
)

// Request is the normalized form of an inbound S3 request.
type Request struct {
	Method        string
	URL           *url.URL
	Host          string
	Header        http.Header
	Body          Body
	ContentLength int64
	RemoteAddr    string
}

// NewRequest converts r. The header map is cloned; the body is kept streamed
// and not read.
func NewRequest(r *http.Request) *Request {
	u := new(url.URL)
	if r.URL != nil {
		*u = *r.URL
	}

	host := r.Host
	if host == "" {
		host = u.Host
	}

	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if host != "" {
		header.Set("Host", host)
	}

	size := r.ContentLength
	switch {
	case r.Body == nil || r.Body == http.NoBody:
		size = 0
	case size == 0:
		// Client requests report 0 for an unknown length.
		size = -1
	}

	return &Request{
		Method:        r.Method,
		URL:           u,
		Host:          host,
		Header:        header,
		Body:          Stream(r.Body, size),
		ContentLength: size,
		RemoteAddr:    r.RemoteAddr,
	}
}

// HTTP builds an *http.Request carrying the same message, for handing the
// request to net/http based components.
func (r *Request) HTTP(ctx context.Context) *http.Request {
	u := new(url.URL)
	if r.URL != nil {
		*u = *r.URL
	}
	hr := (&http.Request{
		Method:        r.Method,
		URL:           u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        r.Header.Clone(),
		Host:          r.Host,
		Body:          r.Body.ReadCloser(),
		ContentLength: r.ContentLength,
		RemoteAddr:    r.RemoteAddr,
		RequestURI:    u.RequestURI(),
	}).WithContext(ctx)
	if hr.Header == nil {
		hr.Header = make(http.Header)
	}
	hr.Header.Del("Host")
	return hr
}

// Path returns the decoded request path.
func (r *Request) Path() string {
	if r.URL == nil {
		return "/"
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// Query returns the parsed query string.
func (r *Request) Query() url.Values {
	if r.URL == nil {
		return url.Values{}
	}
	return r.URL.Query()
}

func (r *Request) LogValue() slog.Value {
	uri := ""
	if r.URL != nil {
		uri = r.URL.RequestURI()
	}
	return slog.GroupValue(
		slog.String("method", r.Method),
		slog.String("host", r.Host),
		slog.String("uri", uri),
		slog.Int64("content_length", r.ContentLength),
	)
}
