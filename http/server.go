package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/pires/go-proxyproto"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/bucketry"
)

const defaultShutdownTimeout = 30 * time.Second

// Config holds listener and timeout settings.
type Config struct {
	Addr              string
	ProxyProtocol     bool
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// Server serves a SharedService over HTTP/1.1.
type Server struct {
	cfg Config
	srv *http.Server
}

// NewServer configures an http.Server around svc. Each connection gets its
// own clone of svc, released when the connection closes.
func NewServer(cfg Config, svc *bucketry.SharedService, chain alice.Chain) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	svc.IntoMakeService().Configure(srv)
	srv.Handler = chain.Then(srv.Handler)

	return &Server{cfg: cfg, srv: srv}
}

// Listen opens the TCP listener, wrapped for the PROXY protocol if
// configured.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}

	if s.cfg.ProxyProtocol {
		return &proxyproto.Listener{Listener: ln, ReadHeaderTimeout: s.cfg.ReadHeaderTimeout}, nil
	}
	return ln, nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", ln.Addr().String(), "proxy_protocol", s.cfg.ProxyProtocol)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
