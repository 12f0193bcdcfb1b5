// Package ops implements the S3 REST protocol on top of a bucketry.Backend.
//
// A Dispatcher is the mandatory component of a bucketry.Service. For every
// request it:
//
//  1. assigns a request id
//  2. resolves the target bucket and key, either from the Host role
//     (virtual-hosted style) or from the path
//  3. verifies AWS Signature V4 header or presigned query authentication
//     against the Auth role
//  4. hands matching requests to the Route role
//  5. identifies the S3 operation and asks the Access role for a decision
//  6. runs the operation against the backend and encodes the result
//
// Supported operations are ListBuckets, CreateBucket, DeleteBucket,
// HeadBucket, GetBucketLocation, ListObjects (v1 and v2), PutObject,
// GetObject, HeadObject and DeleteObject. Anything else is answered with
// NotImplemented or MethodNotAllowed.
//
// Failures are returned as *bucketry.Error carrying the request id, so the
// transport can render them without further context.
package ops
