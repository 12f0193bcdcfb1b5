package main

import (
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/bucketry"
	"github.com/sagarc03/bucketry/access"
	"github.com/sagarc03/bucketry/config"
	"github.com/sagarc03/bucketry/host"
	bucketryhttp "github.com/sagarc03/bucketry/http"
	"github.com/sagarc03/bucketry/keybackend"
	"github.com/sagarc03/bucketry/ops"
	"github.com/sagarc03/bucketry/route"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the S3 server",
	Long: `Start the Bucketry S3 server.

The metadata schema must exist; run 'bucketry init' first, or pass
--migrate to create it on startup.`,
	RunE: runServe,
}

var serveMigrate bool

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default: 9000, env: BUCKETRY_SERVER_PORT)")
	serveCmd.Flags().Bool("proxy-protocol", false, "accept PROXY protocol headers (env: BUCKETRY_SERVER_PROXY_PROTOCOL)")
	serveCmd.Flags().String("region", "", "S3 region (default: us-east-1, env: BUCKETRY_S3_REGION)")
	serveCmd.Flags().StringSlice("domain", nil, "base domain for virtual-hosted style requests, repeatable (env: BUCKETRY_S3_DOMAINS)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables and the storage directory on startup")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, serveMigrate)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			slog.Warn("failed to close backend", "err", closeErr)
		}
	}()
	slog.Info("connected to database", "type", cfg.Database.Type)

	svc, err := buildService(cfg, b)
	if err != nil {
		return err
	}

	shared := svc.IntoShared()
	defer func() {
		if releaseErr := shared.Release(); releaseErr != nil {
			slog.Warn("failed to release service", "err", releaseErr)
		}
	}()

	srv := bucketryhttp.NewServer(httpConfig(cfg.Server), shared, bucketryhttp.Chain(cfg.CORS))
	slog.Info("serving", "region", cfg.S3.Region, "domains", cfg.S3.Domains, "read", cfg.Auth.Read, "write", cfg.Auth.Write)

	return srv.Run(ctx)
}

// buildService assembles the S3 facade over b.
func buildService(cfg *config.Config, b *backend) (*bucketry.Service, error) {
	dispatcher, err := ops.New(b.store, ops.Options{
		Region:              cfg.S3.Region,
		SigningKeyCacheSize: cfg.Auth.SigningKeyCacheSize,
		MaxClockSkew:        cfg.S3.MaxClockSkew,
		MaxObjectSize:       cfg.S3.MaxObjectSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	policy, err := access.NewPolicy(cfg.Auth.Read, cfg.Auth.Write)
	if err != nil {
		return nil, fmt.Errorf("access policy: %w", err)
	}

	routes := route.New()
	routes.Get(route.HealthPath, route.Health(map[string]route.Checker{
		"database": b.db,
	}), route.Public())

	builder := bucketry.NewServiceBuilder(dispatcher).
		SetHost(host.New(cfg.S3.Domains...)).
		SetAccess(policy).
		SetRoute(routes).
		SetLogger(slog.Default())

	if !cfg.Auth.Keys.Empty() {
		keys, keysErr := keybackend.NewSecretStore(cfg.Auth.Keys)
		if keysErr != nil {
			return nil, fmt.Errorf("load keys: %w", keysErr)
		}
		slog.Info("loaded access keys", "count", len(keys.AccessKeys()))
		builder.SetAuth(keys)
	}

	return builder.Build(), nil
}

func httpConfig(s config.ServerConfig) bucketryhttp.Config {
	return bucketryhttp.Config{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.Port)),
		ProxyProtocol:     s.ProxyProtocol,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
		ShutdownTimeout:   s.ShutdownTimeout,
	}
}

