package bucketry

import (
	"context"

	"github.com/sagarc03/bucketry/s3http"
)

// Dispatcher turns a normalized request into a response. It is the only
// mandatory component of a Service.
//
// Implementations must be safe for concurrent use. When ctx is cancelled
// (typically because the client went away) Dispatch should return promptly
// and leave shared state consistent. A successful Dispatch returns a non-nil
// response; a nil response with a nil error is reported as ErrInternal.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *s3http.Request, cx *CallContext) (*s3http.Response, error)
}

// VirtualHost is the result of parsing a Host header. Bucket is empty for
// path-style requests.
type VirtualHost struct {
	Domain string
	Bucket string
}

// Host resolves the Host header of a request.
type Host interface {
	ParseHost(ctx context.Context, host string) (VirtualHost, error)
}

// Auth provides the secret keys used to verify request signatures.
// SecretKey returns ErrUnauthorized when the access key is unknown.
type Auth interface {
	SecretKey(ctx context.Context, accessKey string) (string, error)
}

// Credentials identify an authenticated caller.
type Credentials struct {
	AccessKey string
}

// AccessRequest describes an operation awaiting an access decision.
// Credentials is nil for anonymous requests.
type AccessRequest struct {
	Operation   Operation
	Bucket      string
	Key         string
	Credentials *Credentials
	Request     *s3http.Request
}

// Access decides whether a request may proceed. A nil error allows it.
type Access interface {
	Check(ctx context.Context, req *AccessRequest) error
}

// Route serves requests outside the S3 API. Matched requests bypass S3
// operation handling; CheckAccess runs after signature verification.
type Route interface {
	Match(ctx context.Context, req *s3http.Request) bool
	CheckAccess(ctx context.Context, req *s3http.Request, creds *Credentials) error
	Call(ctx context.Context, req *s3http.Request) (*s3http.Response, error)
}

// Operation names an S3 API operation.
type Operation string

const (
	OpListBuckets       Operation = "ListBuckets"
	OpCreateBucket      Operation = "CreateBucket"
	OpDeleteBucket      Operation = "DeleteBucket"
	OpHeadBucket        Operation = "HeadBucket"
	OpGetBucketLocation Operation = "GetBucketLocation"
	OpListObjects       Operation = "ListObjects"
	OpListObjectsV2     Operation = "ListObjectsV2"
	OpPutObject         Operation = "PutObject"
	OpGetObject         Operation = "GetObject"
	OpHeadObject        Operation = "HeadObject"
	OpDeleteObject      Operation = "DeleteObject"
)

// IsWrite reports whether the operation modifies state.
func (o Operation) IsWrite() bool {
	switch o {
	case OpCreateBucket, OpDeleteBucket, OpPutObject, OpDeleteObject:
		return true
	default:
		return false
	}
}
