package ops

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

type listParams struct {
	prefix       string
	delimiter    string
	maxKeys      int
	encodingType string
}

func parseListParams(query url.Values) (listParams, error) {
	p := listParams{
		prefix:       query.Get("prefix"),
		delimiter:    query.Get("delimiter"),
		maxKeys:      DefaultMaxKeys,
		encodingType: query.Get("encoding-type"),
	}

	if v := query.Get("max-keys"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return listParams{}, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Provided max-keys not an integer or within integer range")
		}
		p.maxKeys = min(n, DefaultMaxKeys)
	}

	if p.encodingType != "" && p.encodingType != "url" {
		return listParams{}, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Invalid Encoding Method specified in Request")
	}

	return p, nil
}

// encode applies encoding-type=url to a key or prefix in a listing.
func (p listParams) encode(s string) string {
	if p.encodingType != "url" {
		return s
	}
	return strings.ReplaceAll(url.QueryEscape(s), "%2F", "/")
}

func (d *Dispatcher) queryObjects(ctx context.Context, c *call, p listParams, after string) (bucketry.ListObjectsResult, error) {
	result, err := d.backend.ListObjects(ctx, bucketry.ListObjectsQuery{
		Bucket:    c.bucket,
		Prefix:    p.prefix,
		Delimiter: p.delimiter,
		After:     after,
		MaxKeys:   p.maxKeys,
	})
	if err != nil {
		return bucketry.ListObjectsResult{}, fmt.Errorf("list objects: %w", err)
	}
	return result, nil
}

func (d *Dispatcher) contents(p listParams, result bucketry.ListObjectsResult, withOwner bool) ([]contentResult, []commonPrefixResult) {
	contents := make([]contentResult, 0, len(result.Objects))
	for _, obj := range result.Objects {
		entry := contentResult{
			Key:          p.encode(obj.Key),
			LastModified: formatTimestamp(obj.UpdatedAt),
			ETag:         quoteETag(obj.Etag),
			Size:         obj.FileSizeBytes,
			StorageClass: "STANDARD",
		}
		if withOwner {
			owner := d.owner()
			entry.Owner = &owner
		}
		contents = append(contents, entry)
	}

	prefixes := make([]commonPrefixResult, 0, len(result.CommonPrefixes))
	for _, prefix := range result.CommonPrefixes {
		prefixes = append(prefixes, commonPrefixResult{Prefix: p.encode(prefix)})
	}
	return contents, prefixes
}

func (d *Dispatcher) listObjects(ctx context.Context, c *call) (*s3http.Response, error) {
	query := c.req.Query()
	p, err := parseListParams(query)
	if err != nil {
		return nil, err
	}

	marker := query.Get("marker")
	result, err := d.queryObjects(ctx, c, p, marker)
	if err != nil {
		return nil, err
	}

	contents, prefixes := d.contents(p, result, true)
	out := listBucketResult{
		Xmlns:          s3Namespace,
		Name:           c.bucket,
		Prefix:         p.encode(p.prefix),
		Marker:         p.encode(marker),
		MaxKeys:        p.maxKeys,
		Delimiter:      p.encode(p.delimiter),
		EncodingType:   p.encodingType,
		IsTruncated:    result.IsTruncated,
		Contents:       contents,
		CommonPrefixes: prefixes,
	}
	if result.IsTruncated {
		out.NextMarker = p.encode(result.NextMarker)
	}

	return xmlResponse(out)
}

func (d *Dispatcher) listObjectsV2(ctx context.Context, c *call) (*s3http.Response, error) {
	query := c.req.Query()
	p, err := parseListParams(query)
	if err != nil {
		return nil, err
	}

	token := query.Get("continuation-token")
	startAfter := query.Get("start-after")

	after := startAfter
	if token != "" {
		marker, err := bucketry.DecodeContinuationToken(token)
		if err != nil {
			return nil, bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "The continuation token provided is incorrect").WithCause(err)
		}
		after = marker
	}

	result, err := d.queryObjects(ctx, c, p, after)
	if err != nil {
		return nil, err
	}

	contents, prefixes := d.contents(p, result, query.Get("fetch-owner") == "true")
	out := listBucketV2Result{
		Xmlns:             s3Namespace,
		Name:              c.bucket,
		Prefix:            p.encode(p.prefix),
		KeyCount:          len(contents) + len(prefixes),
		MaxKeys:           p.maxKeys,
		Delimiter:         p.encode(p.delimiter),
		EncodingType:      p.encodingType,
		IsTruncated:       result.IsTruncated,
		ContinuationToken: token,
		StartAfter:        p.encode(startAfter),
		Contents:          contents,
		CommonPrefixes:    prefixes,
	}
	if result.IsTruncated {
		out.NextContinuationToken = bucketry.EncodeContinuationToken(result.NextMarker)
	}

	return xmlResponse(out)
}
