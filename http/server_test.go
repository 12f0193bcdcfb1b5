package http_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/bucketry"
	bucketryhttp "github.com/sagarc03/bucketry/http"
	"github.com/sagarc03/bucketry/s3http"
)

type dispatcherFunc func(ctx context.Context, req *s3http.Request, cx *bucketry.CallContext) (*s3http.Response, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, req *s3http.Request, cx *bucketry.CallContext) (*s3http.Response, error) {
	return f(ctx, req, cx)
}

// echoRemote answers with the remote address the service saw.
func echoRemote() *bucketry.SharedService {
	d := dispatcherFunc(func(_ context.Context, req *s3http.Request, _ *bucketry.CallContext) (*s3http.Response, error) {
		res := s3http.NewResponse(http.StatusOK)
		res.Body = s3http.Bytes([]byte(req.RemoteAddr))
		return res, nil
	})
	return bucketry.NewServiceBuilder(d).Build().IntoShared()
}

func panicking() *bucketry.SharedService {
	d := dispatcherFunc(func(context.Context, *s3http.Request, *bucketry.CallContext) (*s3http.Response, error) {
		panic("boom")
	})
	return bucketry.NewServiceBuilder(d).Build().IntoShared()
}

// startServer serves on a random port until the test ends.
func startServer(t *testing.T, cfg bucketryhttp.Config, svc *bucketry.SharedService, corsCfg bucketryhttp.CORSConfig) string {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"

	srv := bucketryhttp.NewServer(cfg, svc, bucketryhttp.Chain(corsCfg))
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return ln.Addr().String()
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()
	addr := startServer(t, bucketryhttp.Config{}, echoRemote(), bucketryhttp.CORSConfig{})

	res, body := get(t, "http://"+addr+"/bucket/key", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.HasPrefix(body, "127.0.0.1:"), body)
}

func TestServer_RealIP(t *testing.T) {
	t.Parallel()
	addr := startServer(t, bucketryhttp.Config{}, echoRemote(), bucketryhttp.CORSConfig{})

	_, body := get(t, "http://"+addr+"/", http.Header{"X-Real-Ip": {"203.0.113.7"}})
	assert.Equal(t, "203.0.113.7", body)
}

func TestServer_RecoversPanics(t *testing.T) {
	t.Parallel()
	addr := startServer(t, bucketryhttp.Config{}, panicking(), bucketryhttp.CORSConfig{})

	res, _ := get(t, "http://"+addr+"/", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	// The server keeps serving after a panic.
	res, _ = get(t, "http://"+addr+"/", nil)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	t.Parallel()

	corsCfg := bucketryhttp.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "PUT"},
		ExposedHeaders: []string{"ETag"},
	}
	addr := startServer(t, bucketryhttp.Config{}, echoRemote(), corsCfg)

	res, _ := get(t, "http://"+addr+"/", http.Header{"Origin": {"https://app.example.com"}})
	assert.Equal(t, "https://app.example.com", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, res.Header.Get("Access-Control-Expose-Headers"), "Etag")

	res, _ = get(t, "http://"+addr+"/", http.Header{"Origin": {"https://evil.example.com"}})
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_Disabled(t *testing.T) {
	t.Parallel()
	assert.Nil(t, bucketryhttp.CORS(bucketryhttp.CORSConfig{}))
}

func TestServer_ProxyProtocol(t *testing.T) {
	t.Parallel()
	addr := startServer(t, bucketryhttp.Config{ProxyProtocol: true, ReadHeaderTimeout: 5 * time.Second}, echoRemote(), bucketryhttp.CORSConfig{})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	header := &proxyproto.Header{
		Version:           1,
		Command:           proxyproto.PROXY,
		TransportProtocol: proxyproto.TCPv4,
		SourceAddr:        &net.TCPAddr{IP: net.ParseIP("198.51.100.4"), Port: 41000},
		DestinationAddr:   &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 9000},
	}
	_, err = header.WriteTo(conn)
	require.NoError(t, err)

	_, err = fmt.Fprintf(conn, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	raw, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "198.51.100.4:41000")
}

func TestServer_ShutdownOnCancel(t *testing.T) {
	t.Parallel()

	srv := bucketryhttp.NewServer(bucketryhttp.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, echoRemote(), bucketryhttp.Chain(bucketryhttp.CORSConfig{}))
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	res, _ := get(t, "http://"+ln.Addr().String()+"/", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_, err = net.Dial("tcp", ln.Addr().String())
	assert.Error(t, err, "listener closed after shutdown")
}

func TestServer_ListenError(t *testing.T) {
	t.Parallel()

	srv := bucketryhttp.NewServer(bucketryhttp.Config{Addr: "256.0.0.1:0"}, echoRemote(), bucketryhttp.Chain(bucketryhttp.CORSConfig{}))
	require.Error(t, srv.Run(context.Background()))
}
