package route

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
)

// Router implements bucketry.Route.
type Router struct {
	public  *chi.Mux
	private *chi.Mux
}

var _ bucketry.Route = (*Router)(nil)

type options struct {
	public bool
}

// Option configures a registered endpoint.
type Option func(*options)

// Public marks an endpoint as reachable without credentials.
func Public() Option {
	return func(o *options) { o.public = true }
}

// New returns an empty router.
func New() *Router {
	return &Router{
		public:  chi.NewRouter(),
		private: chi.NewRouter(),
	}
}

// Handle registers h for method and pattern. Patterns use chi syntax.
// A pattern registered both as public and private is public.
func (r *Router) Handle(method, pattern string, h http.Handler, opts ...Option) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mux := r.private
	if o.public {
		mux = r.public
	}
	mux.Method(method, pattern, h)
}

// Get registers h for GET and HEAD requests to pattern.
func (r *Router) Get(pattern string, h http.HandlerFunc, opts ...Option) {
	r.Handle(http.MethodGet, pattern, h, opts...)
	r.Handle(http.MethodHead, pattern, h, opts...)
}

// Match reports whether any registered endpoint serves req.
func (r *Router) Match(_ context.Context, req *s3http.Request) bool {
	return r.muxFor(req) != nil
}

// CheckAccess denies anonymous callers on private endpoints.
func (r *Router) CheckAccess(_ context.Context, req *s3http.Request, creds *bucketry.Credentials) error {
	if r.matches(r.public, req) || creds != nil {
		return nil
	}
	return bucketry.NewError(bucketry.ErrCodeAccessDenied).WithResource(req.Path())
}

// Call runs the matched handler and collects its output.
func (r *Router) Call(ctx context.Context, req *s3http.Request) (*s3http.Response, error) {
	mux := r.muxFor(req)
	if mux == nil {
		return nil, bucketry.NewError(bucketry.ErrCodeNotImplemented).WithResource(req.Path())
	}

	hr := req.HTTP(ctx)
	defer func() { _ = hr.Body.Close() }()

	w := newBufferedWriter()
	mux.ServeHTTP(w, hr)

	return w.response(), nil
}

func (r *Router) muxFor(req *s3http.Request) *chi.Mux {
	switch {
	case r.matches(r.public, req):
		return r.public
	case r.matches(r.private, req):
		return r.private
	default:
		return nil
	}
}

func (r *Router) matches(mux *chi.Mux, req *s3http.Request) bool {
	return mux.Match(chi.NewRouteContext(), req.Method, req.Path())
}
