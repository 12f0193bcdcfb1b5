// Package route serves endpoints that live beside the S3 API, such as
// health checks.
//
// A Router is a bucketry.Route backed by two chi muxes, one for public
// endpoints and one for endpoints that require a verified signature:
//
//	r := route.New()
//	r.Get(route.HealthPath, route.Health(map[string]route.Checker{"database": db}), route.Public())
//	r.Get("/-/keys", listKeys)
//
//	svc := bucketry.NewServiceBuilder(dispatcher).SetRoute(r).Build()
//
// Matched requests never reach the S3 dispatcher. Handlers write into a
// buffer, so streaming responses are held in memory until the handler
// returns.
//
// Paths under "/-/" can never clash with path-style bucket names.
package route
