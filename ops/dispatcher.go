package ops

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

const (
	DefaultRegion              = "us-east-1"
	DefaultSigningKeyCacheSize = 256
	DefaultMaxClockSkew        = 15 * time.Minute
	DefaultMaxObjectSize       = 5 << 30 // 5 GiB, the S3 single PUT limit
	DefaultMaxKeys             = 1000

	maxXMLBodySize = 1 << 20
)

// Options configures a Dispatcher.
type Options struct {
	Region              string
	SigningKeyCacheSize int
	MaxClockSkew        time.Duration
	MaxObjectSize       int64

	OwnerID          string
	OwnerDisplayName string

	// Now overrides the clock used for signature time checks.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Region == "" {
		o.Region = DefaultRegion
	}
	if o.SigningKeyCacheSize <= 0 {
		o.SigningKeyCacheSize = DefaultSigningKeyCacheSize
	}
	if o.MaxClockSkew <= 0 {
		o.MaxClockSkew = DefaultMaxClockSkew
	}
	if o.MaxObjectSize <= 0 {
		o.MaxObjectSize = DefaultMaxObjectSize
	}
	if o.OwnerID == "" {
		o.OwnerID = "bucketry"
	}
	if o.OwnerDisplayName == "" {
		o.OwnerDisplayName = o.OwnerID
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Dispatcher serves the S3 API. It implements bucketry.Dispatcher.
type Dispatcher struct {
	backend  bucketry.Backend
	opts     Options
	verifier *verifier
}

var _ bucketry.Dispatcher = (*Dispatcher)(nil)

// New creates a dispatcher over backend.
func New(backend bucketry.Backend, opts Options) (*Dispatcher, error) {
	if backend == nil {
		return nil, fmt.Errorf("new dispatcher: %w: backend cannot be nil", bucketry.ErrInvalidInput)
	}

	opts = opts.withDefaults()
	v, err := newVerifier(opts.Region, opts.MaxClockSkew, opts.SigningKeyCacheSize, opts.Now)
	if err != nil {
		return nil, fmt.Errorf("new dispatcher: %w", err)
	}

	return &Dispatcher{backend: backend, opts: opts, verifier: v}, nil
}

// Close drops cached signing keys.
func (d *Dispatcher) Close() error {
	d.verifier.keys.Purge()
	return nil
}

// call is the per-request state handed to operation handlers.
type call struct {
	req       *s3http.Request
	requestID string
	bucket    string
	key       string
	creds     *bucketry.Credentials
	// body is the request payload, verified against the signed payload hash.
	body *verifyingReader
}

func (c *call) resource() string {
	if c.bucket == "" {
		return "/"
	}
	if c.key == "" {
		return "/" + c.bucket
	}
	return "/" + c.bucket + "/" + c.key
}

func newRequestID() string {
	id := uuid.New()
	return strings.ToUpper(fmt.Sprintf("%x", id[:8]))
}

func (d *Dispatcher) Dispatch(ctx context.Context, req *s3http.Request, cx *bucketry.CallContext) (*s3http.Response, error) {
	c := &call{req: req, requestID: newRequestID()}

	res, err := d.dispatch(ctx, c, cx)
	if err != nil {
		_ = req.Body.Close()

		e := bucketry.AsError(err)
		if e.Resource == "" {
			e = e.WithResource(c.resource())
		}
		return nil, e.WithRequestID(c.requestID)
	}

	res.Header.Set("x-amz-request-id", c.requestID)
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, c *call, cx *bucketry.CallContext) (*s3http.Response, error) {
	if err := d.resolveTarget(ctx, c, cx); err != nil {
		return nil, err
	}

	if err := d.authenticate(ctx, c, cx); err != nil {
		return nil, err
	}

	if route, ok := cx.Route(); ok && route.Match(ctx, c.req) {
		if err := route.CheckAccess(ctx, c.req, c.creds); err != nil {
			return nil, err
		}
		res, err := route.Call(ctx, c.req)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("%w: route returned no response", bucketry.ErrInternal)
		}
		if res.Header == nil {
			res.Header = make(http.Header)
		}
		return res, nil
	}

	op, err := identify(c)
	if err != nil {
		return nil, err
	}

	if err := validateTarget(c); err != nil {
		return nil, err
	}

	if err := d.checkAccess(ctx, c, cx, op); err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "s3 operation", "op", op, "bucket", c.bucket, "key", c.key, "request_id", c.requestID)

	switch op {
	case bucketry.OpListBuckets:
		return d.listBuckets(ctx, c)
	case bucketry.OpCreateBucket:
		return d.createBucket(ctx, c)
	case bucketry.OpDeleteBucket:
		return d.deleteBucket(ctx, c)
	case bucketry.OpHeadBucket:
		return d.headBucket(ctx, c)
	case bucketry.OpGetBucketLocation:
		return d.getBucketLocation(ctx, c)
	case bucketry.OpListObjects:
		return d.listObjects(ctx, c)
	case bucketry.OpListObjectsV2:
		return d.listObjectsV2(ctx, c)
	case bucketry.OpPutObject:
		return d.putObject(ctx, c)
	case bucketry.OpGetObject:
		return d.getObject(ctx, c, false)
	case bucketry.OpHeadObject:
		return d.getObject(ctx, c, true)
	case bucketry.OpDeleteObject:
		return d.deleteObject(ctx, c)
	default:
		return nil, bucketry.NewError(bucketry.ErrCodeNotImplemented)
	}
}

// resolveTarget fills in the bucket and key addressed by the request.
func (d *Dispatcher) resolveTarget(ctx context.Context, c *call, cx *bucketry.CallContext) error {
	path := strings.TrimPrefix(c.req.Path(), "/")

	if h, ok := cx.Host(); ok {
		vh, err := h.ParseHost(ctx, c.req.Host)
		if err != nil {
			return err
		}
		if vh.Bucket != "" {
			c.bucket = vh.Bucket
			c.key = path
			return nil
		}
	}

	c.bucket, c.key, _ = strings.Cut(path, "/")
	return nil
}

func (d *Dispatcher) authenticate(ctx context.Context, c *call, cx *bucketry.CallContext) error {
	payloadHash := ""

	if auth, ok := cx.Auth(); ok && isSigned(c.req) {
		creds, hash, err := d.verifier.verify(ctx, auth, c.req)
		if err != nil {
			return err
		}
		c.creds = creds
		payloadHash = hash
	}

	if payloadHash != "" && c.req.Body.Size() == 0 && payloadHash != emptySHA256 {
		return bucketry.NewError(bucketry.ErrCodeXAmzContentSHA256Mismatch)
	}

	var wantMD5 []byte
	if v := c.req.Header.Get("Content-Md5"); v != "" {
		sum, err := decodeContentMD5(v)
		if err != nil {
			return err
		}
		wantMD5 = sum
	}

	c.body = newVerifyingReader(c.req.Body.Reader(), payloadHash, wantMD5, d.opts.MaxObjectSize)
	return nil
}

func (d *Dispatcher) checkAccess(ctx context.Context, c *call, cx *bucketry.CallContext, op bucketry.Operation) error {
	if access, ok := cx.Access(); ok {
		return access.Check(ctx, &bucketry.AccessRequest{
			Operation:   op,
			Bucket:      c.bucket,
			Key:         c.key,
			Credentials: c.creds,
			Request:     c.req,
		})
	}

	if _, ok := cx.Auth(); ok && c.creds == nil {
		return bucketry.NewError(bucketry.ErrCodeAccessDenied)
	}
	return nil
}

// identify maps method, target and sub-resources onto an S3 operation.
func identify(c *call) (bucketry.Operation, error) {
	query := c.req.Query()
	method := c.req.Method

	if c.bucket == "" {
		if method == http.MethodGet {
			return bucketry.OpListBuckets, nil
		}
		return "", bucketry.NewError(bucketry.ErrCodeMethodNotAllowed)
	}

	for _, sub := range unsupportedSubresources {
		if query.Has(sub) {
			return "", bucketry.Errorf(bucketry.ErrCodeNotImplemented, "The %s sub-resource is not implemented", sub)
		}
	}

	if c.key == "" {
		switch method {
		case http.MethodGet:
			if query.Has("location") {
				return bucketry.OpGetBucketLocation, nil
			}
			if query.Get("list-type") == "2" {
				return bucketry.OpListObjectsV2, nil
			}
			return bucketry.OpListObjects, nil
		case http.MethodPut:
			return bucketry.OpCreateBucket, nil
		case http.MethodDelete:
			return bucketry.OpDeleteBucket, nil
		case http.MethodHead:
			return bucketry.OpHeadBucket, nil
		case http.MethodPost:
			return "", bucketry.NewError(bucketry.ErrCodeNotImplemented)
		default:
			return "", bucketry.NewError(bucketry.ErrCodeMethodNotAllowed)
		}
	}

	switch method {
	case http.MethodGet:
		return bucketry.OpGetObject, nil
	case http.MethodHead:
		return bucketry.OpHeadObject, nil
	case http.MethodPut:
		if c.req.Header.Get("X-Amz-Copy-Source") != "" {
			return "", bucketry.Errorf(bucketry.ErrCodeNotImplemented, "CopyObject is not implemented")
		}
		return bucketry.OpPutObject, nil
	case http.MethodDelete:
		return bucketry.OpDeleteObject, nil
	case http.MethodPost:
		return "", bucketry.NewError(bucketry.ErrCodeNotImplemented)
	default:
		return "", bucketry.NewError(bucketry.ErrCodeMethodNotAllowed)
	}
}

var unsupportedSubresources = []string{
	"accelerate", "acl", "analytics", "cors", "delete", "encryption",
	"intelligent-tiering", "inventory", "legal-hold", "lifecycle", "logging",
	"metrics", "notification", "object-lock", "ownershipControls", "partNumber",
	"policy", "policyStatus", "publicAccessBlock", "replication", "requestPayment",
	"restore", "retention", "select", "tagging", "torrent", "uploadId", "uploads",
	"versioning", "versionId", "versions", "website",
}

func validateTarget(c *call) error {
	if c.bucket != "" && !bucketry.IsValidBucketName(c.bucket) {
		return bucketry.NewError(bucketry.ErrCodeInvalidBucketName)
	}
	if c.key != "" {
		if len(c.key) > bucketry.MaxKeyLength {
			return bucketry.NewError(bucketry.ErrCodeKeyTooLong)
		}
		if !bucketry.IsValidKey(c.key) {
			return bucketry.Errorf(bucketry.ErrCodeInvalidArgument, "Object key is not valid")
		}
	}
	return nil
}
