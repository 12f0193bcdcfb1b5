// Package http serves a bucketry SharedService over net/http.
//
// Server owns the *http.Server. It installs the per-connection service
// hooks from bucketry.MakeService, wraps the handler in an alice middleware
// chain and can accept connections through a PROXY protocol listener when
// bucketry runs behind a TCP load balancer.
//
// # Usage
//
//	srv := http.NewServer(http.Config{Addr: ":9000"}, shared, http.Chain(corsCfg))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run returns after ctx is canceled and in-flight requests have drained, or
// ShutdownTimeout has passed.
package http
