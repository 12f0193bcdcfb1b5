package bucketry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/s3http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// dispatcherFunc adapts a function to bucketry.Dispatcher.
type dispatcherFunc func(ctx context.Context, req *s3http.Request, cx *bucketry.CallContext) (*s3http.Response, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, req *s3http.Request, cx *bucketry.CallContext) (*s3http.Response, error) {
	return f(ctx, req, cx)
}

func okDispatcher(status int, body string) dispatcherFunc {
	return func(context.Context, *s3http.Request, *bucketry.CallContext) (*s3http.Response, error) {
		res := s3http.NewResponse(status)
		res.Body = s3http.Bytes([]byte(body))
		return res, nil
	}
}

// closingDispatcher counts Close calls.
type closingDispatcher struct {
	dispatcherFunc
	closed atomic.Int32
	err    error
}

func (d *closingDispatcher) Close() error {
	d.closed.Add(1)
	return d.err
}

// MockAuth is a mock implementation of bucketry.Auth
type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) SecretKey(ctx context.Context, accessKey string) (string, error) {
	args := m.Called(ctx, accessKey)
	return args.String(0), args.Error(1)
}

func (m *MockAuth) Close() error {
	return m.Called().Error(0)
}

type stubHost struct{ name string }

func (h *stubHost) ParseHost(context.Context, string) (bucketry.VirtualHost, error) {
	return bucketry.VirtualHost{}, nil
}

type stubAccess struct{}

func (stubAccess) Check(context.Context, *bucketry.AccessRequest) error { return nil }

type stubRoute struct{}

func (stubRoute) Match(context.Context, *s3http.Request) bool { return false }

func (stubRoute) CheckAccess(context.Context, *s3http.Request, *bucketry.Credentials) error {
	return nil
}

func (stubRoute) Call(context.Context, *s3http.Request) (*s3http.Response, error) {
	return s3http.NewResponse(200), nil
}

// logCapture collects JSON log lines written through a logger.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(c, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (c *logCapture) entries(t *testing.T) []map[string]any {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(c.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func (c *logCapture) find(t *testing.T, msg string) map[string]any {
	t.Helper()
	for _, e := range c.entries(t) {
		if e["msg"] == msg {
			return e
		}
	}
	t.Fatalf("no log entry with message %q", msg)
	return nil
}
