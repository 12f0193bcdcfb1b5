// Package bucketry provides an S3-compatible object storage server built
// around a small request-dispatch facade.
//
// A Service is assembled once with a ServiceBuilder from a mandatory
// Dispatcher and up to four optional roles:
//
//   - Host: resolves virtual-hosted style requests to a bucket
//   - Auth: looks up secret keys for request signature verification
//   - Access: decides whether a caller may perform an operation
//   - Route: serves custom endpoints next to the S3 API
//
// Every request is normalized into an s3http.Request, handed to the
// dispatcher together with a CallContext that exposes the configured roles,
// timed and logged. The service itself holds no per-request state and is
// safe for concurrent use.
//
// # Sharing
//
// IntoShared wraps a Service in a reference-counted SharedService. Handles
// are cheap to clone, and the last Release closes any component that
// implements io.Closer. A SharedService plugs into net/http in three ways:
//
//   - as an http.Handler (ServeHTTP), writing S3 XML errors on failure
//   - as an Endpoint (Ready/Call), surfacing dispatch errors unchanged
//   - as an http.RoundTripper, so S3 clients can talk to it in-process
//
// IntoMakeService produces a per-connection factory whose hooks plug into
// http.Server.
//
// # Example Usage
//
//	store := storage.NewStore(repo, files, storage.Config{})
//	svc := bucketry.NewServiceBuilder(ops.New(store, ops.Options{Region: "us-east-1"})).
//	    SetAuth(secrets).
//	    SetHost(host.New("s3.example.com")).
//	    Build()
//
//	shared := svc.IntoShared()
//	defer shared.Release()
//
//	http.ListenAndServe(":9000", shared)
//
// See the ops package for the S3 protocol implementation and the storage
// package for the default Backend.
package bucketry
