package bucketry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sagarc03/bucketry/internal/clock"
	"github.com/sagarc03/bucketry/s3http"
)

// ServiceBuilder assembles a Service. A builder is single use: after Build,
// every setter and further calls to Build panic.
type ServiceBuilder struct {
	svc   Service
	built bool
}

// NewServiceBuilder starts a builder around the mandatory dispatcher.
// It panics if d is nil.
func NewServiceBuilder(d Dispatcher) *ServiceBuilder {
	if d == nil {
		panic("bucketry: nil dispatcher")
	}
	return &ServiceBuilder{svc: Service{dispatcher: d}}
}

func (b *ServiceBuilder) checkUnbuilt(method string) {
	if b.built {
		panic(fmt.Sprintf("bucketry: ServiceBuilder.%s called after Build", method))
	}
}

// SetHost sets the host role, replacing any previous value.
func (b *ServiceBuilder) SetHost(h Host) *ServiceBuilder {
	b.checkUnbuilt("SetHost")
	b.svc.host = h
	return b
}

// SetAuth sets the auth role, replacing any previous value.
func (b *ServiceBuilder) SetAuth(a Auth) *ServiceBuilder {
	b.checkUnbuilt("SetAuth")
	b.svc.auth = a
	return b
}

// SetAccess sets the access role, replacing any previous value.
func (b *ServiceBuilder) SetAccess(a Access) *ServiceBuilder {
	b.checkUnbuilt("SetAccess")
	b.svc.access = a
	return b
}

// SetRoute sets the route role, replacing any previous value.
func (b *ServiceBuilder) SetRoute(r Route) *ServiceBuilder {
	b.checkUnbuilt("SetRoute")
	b.svc.route = r
	return b
}

// SetLogger sets the logger used for request logs. When unset, the default
// slog logger at the time of each call is used.
func (b *ServiceBuilder) SetLogger(l *slog.Logger) *ServiceBuilder {
	b.checkUnbuilt("SetLogger")
	b.svc.logger = l
	return b
}

// Build finalizes the service.
func (b *ServiceBuilder) Build() *Service {
	b.checkUnbuilt("Build")
	b.built = true
	svc := b.svc
	return &svc
}

// Service dispatches requests to its Dispatcher. It is immutable and safe
// for concurrent use.
type Service struct {
	dispatcher Dispatcher
	host       Host
	auth       Auth
	access     Access
	route      Route
	logger     *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Service) callContext() *CallContext {
	return &CallContext{
		dispatcher: s.dispatcher,
		host:       s.host,
		auth:       s.auth,
		access:     s.access,
		route:      s.route,
	}
}

// Dispatch handles one request. On success the dispatcher's response is
// returned as an *http.Response tied to r; on failure the dispatcher's
// error is returned unchanged.
func (s *Service) Dispatch(ctx context.Context, r *http.Request) (*http.Response, error) {
	res, err := s.dispatch(ctx, r)
	if err != nil {
		return nil, err
	}
	return res.HTTP(r), nil
}

func (s *Service) dispatch(ctx context.Context, r *http.Request) (*s3http.Response, error) {
	start := clock.Now()
	log := s.log()

	req := s3http.NewRequest(r)
	log.DebugContext(ctx, "dispatch request", "method", req.Method, "uri", req.URL.RequestURI())

	res, err := s.dispatcher.Dispatch(ctx, req, s.callContext())
	duration := clock.Since(start)

	if err != nil {
		log.ErrorContext(ctx, "request failed", "duration", duration, "err", err)
		return nil, err
	}

	if res == nil {
		err = fmt.Errorf("%w: dispatcher returned no response", ErrInternal)
		log.ErrorContext(ctx, "request failed", "duration", duration, "err", err)
		return nil, err
	}
	log.DebugContext(ctx, "request completed", "duration", duration, "response", res)

	return res, nil
}

// close releases components that hold resources.
func (s *Service) close() error {
	var errs []error
	for _, c := range []any{s.dispatcher, s.host, s.auth, s.access, s.route} {
		closer, ok := c.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) String() string {
	return fmt.Sprintf("bucketry.Service{host:%t auth:%t access:%t route:%t}",
		s.host != nil, s.auth != nil, s.access != nil, s.route != nil)
}

func (s *Service) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("host", s.host != nil),
		slog.Bool("auth", s.auth != nil),
		slog.Bool("access", s.access != nil),
		slog.Bool("route", s.route != nil),
	)
}
