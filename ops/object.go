package ops

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

const (
	defaultContentType = "application/octet-stream"
	userMetadataPrefix = "X-Amz-Meta-"
)

// responseOverrides are the GetObject query parameters that replace
// response headers.
var responseOverrides = map[string]string{
	"response-cache-control":       "Cache-Control",
	"response-content-disposition": "Content-Disposition",
	"response-content-encoding":    "Content-Encoding",
	"response-content-language":    "Content-Language",
	"response-content-type":        "Content-Type",
	"response-expires":             "Expires",
}

func (d *Dispatcher) putObject(ctx context.Context, c *call) (*s3http.Response, error) {
	if c.req.ContentLength > d.opts.MaxObjectSize {
		return nil, bucketry.NewError(bucketry.ErrCodeEntityTooLarge)
	}

	contentType := c.req.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	meta, err := d.backend.PutObject(ctx, bucketry.PutObjectInput{
		Bucket:       c.bucket,
		Key:          c.key,
		ContentType:  contentType,
		UserMetadata: userMetadata(c.req.Header),
	}, c.body)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	res := s3http.NewResponse(http.StatusOK)
	res.Header.Set("ETag", quoteETag(meta.Etag))
	return res, nil
}

func (d *Dispatcher) getObject(ctx context.Context, c *call, head bool) (*s3http.Response, error) {
	var (
		meta    bucketry.MetaData
		content io.ReadSeekCloser
		err     error
	)
	if head {
		meta, err = d.backend.HeadObject(ctx, c.bucket, c.key)
	} else {
		meta, content, err = d.backend.GetObject(ctx, c.bucket, c.key)
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	closeContent := func() {
		if content != nil {
			_ = content.Close()
		}
	}

	res := s3http.NewResponse(http.StatusOK)
	setObjectHeaders(res.Header, meta)

	if status, err := checkPreconditions(c.req.Header, meta); err != nil {
		closeContent()
		return nil, err
	} else if status == http.StatusNotModified {
		closeContent()
		res.StatusCode = http.StatusNotModified
		res.Header.Del("Content-Length")
		res.Header.Del("Content-Type")
		return res, nil
	}

	query := c.req.Query()
	for param, header := range responseOverrides {
		if v := query.Get(param); v != "" {
			res.Header.Set(header, v)
		}
	}

	size := meta.FileSizeBytes
	start, length := int64(0), size

	if spec := c.req.Header.Get("Range"); spec != "" {
		r, ok, err := parseRange(spec, size)
		if err != nil {
			closeContent()
			return nil, bucketry.NewError(bucketry.ErrCodeInvalidRange).WithCause(err)
		}
		if ok {
			start, length = r.start, r.length
			res.StatusCode = http.StatusPartialContent
			res.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.start, r.start+r.length-1, size))
		}
	}
	res.Header.Set("Content-Length", strconv.FormatInt(length, 10))

	if head {
		return res, nil
	}

	if start > 0 {
		if _, err := content.Seek(start, io.SeekStart); err != nil {
			closeContent()
			return nil, fmt.Errorf("get object: seek: %w", err)
		}
	}
	res.Body = s3http.Stream(&limitedReadCloser{Reader: io.LimitReader(content, length), Closer: content}, length)
	return res, nil
}

func (d *Dispatcher) deleteObject(ctx context.Context, c *call) (*s3http.Response, error) {
	err := d.backend.DeleteObject(ctx, c.bucket, c.key)
	if err != nil && !errors.Is(err, bucketry.ErrNoSuchKey) {
		return nil, fmt.Errorf("delete object: %w", err)
	}
	return s3http.NewResponse(http.StatusNoContent), nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func setObjectHeaders(h http.Header, meta bucketry.MetaData) {
	h.Set("Content-Type", meta.ContentType)
	h.Set("Content-Length", strconv.FormatInt(meta.FileSizeBytes, 10))
	h.Set("ETag", quoteETag(meta.Etag))
	h.Set("Last-Modified", meta.UpdatedAt.UTC().Format(http.TimeFormat))
	h.Set("Accept-Ranges", "bytes")
	for k, v := range meta.UserMetadata {
		h.Set(userMetadataPrefix+k, v)
	}
}

// checkPreconditions evaluates the conditional request headers. It returns
// 304 when the object is unchanged for the client, or a PreconditionFailed
// error.
func checkPreconditions(h http.Header, meta bucketry.MetaData) (int, error) {
	etag := quoteETag(meta.Etag)
	modified := meta.UpdatedAt.UTC().Truncate(time.Second)

	if v := h.Get("If-Match"); v != "" {
		if !etagMatches(v, etag) {
			return 0, bucketry.NewError(bucketry.ErrCodePreconditionFailed)
		}
	} else if v := h.Get("If-Unmodified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil && modified.After(t) {
			return 0, bucketry.NewError(bucketry.ErrCodePreconditionFailed)
		}
	}

	if v := h.Get("If-None-Match"); v != "" {
		if etagMatches(v, etag) {
			return http.StatusNotModified, nil
		}
	} else if v := h.Get("If-Modified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil && !modified.After(t) {
			return http.StatusNotModified, nil
		}
	}

	return http.StatusOK, nil
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag || quoteETag(candidate) == etag {
			return true
		}
	}
	return false
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}

func userMetadata(h http.Header) map[string]string {
	var meta map[string]string
	for k, v := range h {
		if !strings.HasPrefix(k, userMetadataPrefix) || len(v) == 0 {
			continue
		}
		if meta == nil {
			meta = make(map[string]string)
		}
		meta[strings.ToLower(strings.TrimPrefix(k, userMetadataPrefix))] = strings.Join(v, ",")
	}
	return meta
}

func decodeContentMD5(v string) ([]byte, error) {
	sum, err := base64.StdEncoding.DecodeString(v)
	if err != nil || len(sum) != 16 {
		return nil, bucketry.NewError(bucketry.ErrCodeInvalidDigest)
	}
	return sum, nil
}
