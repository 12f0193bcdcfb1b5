package ops

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

func (d *Dispatcher) listBuckets(ctx context.Context, _ *call) (*s3http.Response, error) {
	buckets, err := d.backend.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	result := listAllMyBucketsResult{
		Xmlns:   s3Namespace,
		Owner:   d.owner(),
		Buckets: make([]bucketResult, 0, len(buckets)),
	}
	for _, b := range buckets {
		result.Buckets = append(result.Buckets, bucketResult{
			Name:         b.Name,
			CreationDate: formatTimestamp(b.CreatedAt),
		})
	}

	return xmlResponse(result)
}

func (d *Dispatcher) createBucket(ctx context.Context, c *call) (*s3http.Response, error) {
	body, err := readLimited(c.body, maxXMLBodySize)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(body)) > 0 {
		var conf createBucketConfiguration
		if err := xml.Unmarshal(body, &conf); err != nil {
			return nil, bucketry.NewError(bucketry.ErrCodeMalformedXML).WithCause(err)
		}
		if conf.LocationConstraint != "" && conf.LocationConstraint != d.opts.Region {
			return nil, bucketry.Errorf(bucketry.ErrCodeInvalidArgument,
				"The specified location-constraint is not valid: %s", conf.LocationConstraint)
		}
	}

	if _, err := d.backend.CreateBucket(ctx, c.bucket); err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	res := s3http.NewResponse(http.StatusOK)
	res.Header.Set("Location", "/"+c.bucket)
	return res, nil
}

func (d *Dispatcher) deleteBucket(ctx context.Context, c *call) (*s3http.Response, error) {
	if err := d.backend.DeleteBucket(ctx, c.bucket); err != nil {
		return nil, fmt.Errorf("delete bucket: %w", err)
	}
	return s3http.NewResponse(http.StatusNoContent), nil
}

func (d *Dispatcher) headBucket(ctx context.Context, c *call) (*s3http.Response, error) {
	if _, err := d.backend.HeadBucket(ctx, c.bucket); err != nil {
		return nil, fmt.Errorf("head bucket: %w", err)
	}

	res := s3http.NewResponse(http.StatusOK)
	res.Header.Set("x-amz-bucket-region", d.opts.Region)
	return res, nil
}

func (d *Dispatcher) getBucketLocation(ctx context.Context, c *call) (*s3http.Response, error) {
	if _, err := d.backend.HeadBucket(ctx, c.bucket); err != nil {
		return nil, fmt.Errorf("get bucket location: %w", err)
	}

	// us-east-1 is reported as an empty constraint.
	region := d.opts.Region
	if region == DefaultRegion {
		region = ""
	}
	return xmlResponse(locationConstraint{Xmlns: s3Namespace, Region: region})
}

func (d *Dispatcher) owner() ownerResult {
	return ownerResult{ID: d.opts.OwnerID, DisplayName: d.opts.OwnerDisplayName}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var s3err *bucketry.Error
		if errors.As(err, &s3err) {
			return nil, s3err
		}
		return nil, bucketry.NewError(bucketry.ErrCodeInvalidRequest).WithCause(err)
	}
	if int64(len(data)) > limit {
		return nil, bucketry.Errorf(bucketry.ErrCodeInvalidRequest, "Request body is too large")
	}
	return data, nil
}
