package bucketry

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/sagarc03/bucketry/s3http"
)

// Endpoint is the request/response calling convention used by client-side
// middleware stacks: Ready reports whether a call may be made, Call performs it.
type Endpoint interface {
	Ready(ctx context.Context) error
	Call(r *http.Request) (*http.Response, error)
}

var (
	_ http.Handler      = (*SharedService)(nil)
	_ http.RoundTripper = (*SharedService)(nil)
	_ Endpoint          = (*SharedService)(nil)
)

type sharedInner struct {
	svc  *Service
	refs atomic.Int64
}

// SharedService is a reference-counted handle to a Service. All handles
// cloned from the same origin share one Service; it is torn down when the
// last handle is released.
type SharedService struct {
	inner    *sharedInner
	released atomic.Bool
}

// IntoShared wraps s in a SharedService holding one reference.
func (s *Service) IntoShared() *SharedService {
	inner := &sharedInner{svc: s}
	inner.refs.Store(1)
	return &SharedService{inner: inner}
}

// Clone returns a new handle to the same Service. Cloning a released handle,
// or any handle once the Service has been torn down, returns a handle that
// fails every call with ErrServiceClosed.
func (h *SharedService) Clone() *SharedService {
	for !h.released.Load() {
		n := h.inner.refs.Load()
		if n <= 0 {
			break
		}
		if h.inner.refs.CompareAndSwap(n, n+1) {
			return &SharedService{inner: h.inner}
		}
	}
	dead := &SharedService{inner: h.inner}
	dead.released.Store(true)
	return dead
}

// Release drops this handle's reference. Releasing the last handle closes
// every component implementing io.Closer and returns their errors joined.
// Calling Release more than once on a handle has no further effect.
func (h *SharedService) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return nil
	}
	if h.inner.refs.Add(-1) > 0 {
		return nil
	}
	return h.inner.svc.close()
}

// Service returns the underlying Service.
func (h *SharedService) Service() *Service {
	return h.inner.svc
}

// call dispatches through the Service while this handle holds its reference.
func (h *SharedService) call(r *http.Request) (*s3http.Response, error) {
	if h.released.Load() || h.inner.refs.Load() <= 0 {
		return nil, ErrServiceClosed
	}
	return h.inner.svc.dispatch(r.Context(), r)
}

// ServeHTTP implements http.Handler. Dispatch errors are written as S3 XML
// error responses.
func (h *SharedService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.call(r)
	if err != nil {
		res = ErrorResponse(err, "")
	}
	if writeErr := res.Write(w, r.Method); writeErr != nil {
		h.inner.svc.log().ErrorContext(r.Context(), "failed to write response", "err", writeErr)
	}
}

// Ready always succeeds; a SharedService has no capacity limit.
func (h *SharedService) Ready(context.Context) error {
	return nil
}

// Call dispatches r, returning the dispatcher's error unchanged on failure.
func (h *SharedService) Call(r *http.Request) (*http.Response, error) {
	res, err := h.call(r)
	if err != nil {
		return nil, err
	}
	return res.HTTP(r), nil
}

// RoundTrip implements http.RoundTripper so S3 clients can be pointed at the
// service without a network hop. Dispatch errors become S3 error responses,
// as a remote server would send them.
func (h *SharedService) RoundTrip(r *http.Request) (*http.Response, error) {
	defer func() {
		if r.Body != nil {
			_ = r.Body.Close()
		}
	}()

	res, err := h.call(r)
	if err != nil {
		res = ErrorResponse(err, "")
	}
	return res.HTTP(r), nil
}
