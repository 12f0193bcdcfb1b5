// Package s3http holds the HTTP message types the S3 dispatcher works on.
//
// A Request is a transport-independent copy of an inbound *http.Request: the
// Host header is folded back into Header (net/http keeps it separately) and
// the body stays streamed. A Response is what an operation produces; it is
// converted back to the transport at the edge, either written to an
// http.ResponseWriter or turned into an *http.Response for client transports.
//
// Body carries either a complete payload held in memory or a stream with an
// optional known size.
package s3http
