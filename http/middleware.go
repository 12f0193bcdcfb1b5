package http

import (
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/justinas/alice"
)

// CORSConfig holds cross-origin resource sharing settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"           yaml:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"   yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"   yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"   yaml:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"   yaml:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"           yaml:"max_age"           validate:"min=0"`
}

// CORS returns the CORS middleware for cfg, or nil when it is disabled.
func CORS(cfg CORSConfig) alice.Constructor {
	if !cfg.Enabled {
		return nil
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}

// Chain is the standard middleware stack: client address resolution from
// X-Forwarded-For / X-Real-IP, panic recovery, then CORS when enabled.
func Chain(corsCfg CORSConfig) alice.Chain {
	chain := alice.New(middleware.RealIP, middleware.Recoverer)
	if c := CORS(corsCfg); c != nil {
		chain = chain.Append(c)
	}
	return chain
}
