package bucketry

import (
	"context"
	"net"
	"net/http"
	"sync"
)

type connServiceKey struct{}

// MakeService hands out a SharedService per accepted connection.
type MakeService struct {
	shared *SharedService
	conns  sync.Map // net.Conn -> *SharedService
}

// IntoMakeService returns a connection factory backed by clones of h.
func (h *SharedService) IntoMakeService() *MakeService {
	return &MakeService{shared: h}
}

// NewService returns a service for a new connection. The target is not
// inspected and the call cannot fail.
func (m *MakeService) NewService(_ any) *SharedService {
	return m.shared.Clone()
}

// ConnContext is an http.Server ConnContext hook that attaches a per-connection
// service to the connection's base context.
func (m *MakeService) ConnContext(ctx context.Context, c net.Conn) context.Context {
	svc := m.NewService(c)
	m.conns.Store(c, svc)
	return context.WithValue(ctx, connServiceKey{}, svc)
}

// ConnState is an http.Server ConnState hook that releases the per-connection
// service once the connection is closed or hijacked.
func (m *MakeService) ConnState(c net.Conn, state http.ConnState) {
	if state != http.StateClosed && state != http.StateHijacked {
		return
	}
	v, ok := m.conns.LoadAndDelete(c)
	if !ok {
		return
	}
	svc := v.(*SharedService)
	if err := svc.Release(); err != nil {
		svc.inner.svc.log().Error("failed to release connection service", "err", err)
	}
}

// Handler serves requests through the service attached to their connection,
// falling back to the shared service for requests without one.
func (m *MakeService) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if svc, ok := r.Context().Value(connServiceKey{}).(*SharedService); ok {
			svc.ServeHTTP(w, r)
			return
		}
		m.shared.ServeHTTP(w, r)
	})
}

// Configure installs the handler and connection hooks on srv.
func (m *MakeService) Configure(srv *http.Server) {
	srv.Handler = m.Handler()
	srv.ConnContext = m.ConnContext
	srv.ConnState = m.ConnState
}
