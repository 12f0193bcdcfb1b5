package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/bucketry/database"
	bucketryhttp "github.com/sagarc03/bucketry/http"
	"github.com/sagarc03/bucketry/keybackend"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BUCKETRY"

type configKey struct{}

// WithContext returns a copy of ctx carrying cfg.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the Config stored by WithContext.
func FromContext(ctx context.Context) (*Config, error) {
	if cfg, _ := ctx.Value(configKey{}).(*Config); cfg != nil {
		return cfg, nil
	}
	return nil, errors.New("config not found in context")
}

// Config is the root configuration struct for bucketry.
type Config struct {
	Env      string                  `mapstructure:"env"      yaml:"env"      validate:"required,oneof=dev prod"`
	Server   ServerConfig            `mapstructure:"server"   yaml:"server"`
	S3       S3Config                `mapstructure:"s3"       yaml:"s3"`
	Database database.Config         `mapstructure:"database" yaml:"database"`
	Storage  StorageConfig           `mapstructure:"storage"  yaml:"storage"`
	Auth     AuthConfig              `mapstructure:"auth"     yaml:"auth"`
	CORS     bucketryhttp.CORSConfig `mapstructure:"cors"     yaml:"cors"`
	Log      LogConfig               `mapstructure:"log"      yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port              int           `mapstructure:"port"                yaml:"port"                validate:"required,min=1,max=65535"`
	ProxyProtocol     bool          `mapstructure:"proxy_protocol"      yaml:"proxy_protocol"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"min=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        yaml:"read_timeout"        validate:"min=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       yaml:"write_timeout"       validate:"min=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        yaml:"idle_timeout"        validate:"min=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    yaml:"shutdown_timeout"    validate:"min=0"`
}

// S3Config holds settings of the S3 protocol surface.
type S3Config struct {
	Region        string        `mapstructure:"region"          yaml:"region"          validate:"required"`
	Domains       []string      `mapstructure:"domains"         yaml:"domains"         validate:"dive,required,hostname_rfc1123"`
	MaxObjectSize int64         `mapstructure:"max_object_size" yaml:"max_object_size" validate:"min=0"`
	MaxClockSkew  time.Duration `mapstructure:"max_clock_skew"  yaml:"max_clock_skew"  validate:"min=0"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	Path           string        `mapstructure:"path"            yaml:"path"            validate:"required"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout" validate:"min=0"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Read                string                `mapstructure:"read"                   yaml:"read"                   validate:"required,oneof=public private"`
	Write               string                `mapstructure:"write"                  yaml:"write"                  validate:"required,oneof=public private"`
	Keys                keybackend.KeysConfig `mapstructure:"keys"                   yaml:"keys"`
	SigningKeyCacheSize int                   `mapstructure:"signing_key_cache_size" yaml:"signing_key_cache_size" validate:"min=0"`
}

// RequiresKeys reports whether any operation needs signed requests.
func (a AuthConfig) RequiresKeys() bool {
	return a.Read == "private" || a.Write == "private"
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// Redacted returns a copy of c with secret keys masked, for display.
func (c Config) Redacted() Config {
	out := c
	out.Auth.Keys.Inline = make([]keybackend.KeyPair, len(c.Auth.Keys.Inline))
	for i, p := range c.Auth.Keys.Inline {
		out.Auth.Keys.Inline[i] = keybackend.KeyPair{AccessKey: p.AccessKey, SecretKey: "********"}
	}
	return out
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":        "database.type",
	"db-dsn":         "database.dsn",
	"storage-path":   "storage.path",
	"port":           "server.port",
	"proxy-protocol": "server.proxy_protocol",
	"region":         "s3.region",
	"domain":         "s3.domains",
	"log-level":      "log.level",
}

// bindFlags binds the flags the user set. Unset flags are skipped so their
// zero values do not shadow files or the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagToViperKey[f.Name]
		if !ok {
			key = f.Name
		}
		_ = v.BindPFlag(key, f)
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "prod")

	v.SetDefault("server.port", 9000)
	v.SetDefault("server.proxy_protocol", false)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.read_timeout", time.Duration(0))
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.domains", []string{})
	v.SetDefault("s3.max_object_size", int64(5<<30))
	v.SetDefault("s3.max_clock_skew", 15*time.Minute)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "bucketry.db")
	v.SetDefault("database.tables.buckets", "bucketry_buckets")
	v.SetDefault("database.tables.objects", "bucketry_objects")

	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.cleanup_timeout", 30*time.Second)

	v.SetDefault("auth.read", "public")
	v.SetDefault("auth.write", "public")
	v.SetDefault("auth.keys.file", "")
	v.SetDefault("auth.signing_key_cache_size", 256)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "PUT", "DELETE"})
	v.SetDefault("cors.allowed_headers", []string{"*"})
	v.SetDefault("cors.exposed_headers", []string{"ETag", "x-amz-request-id"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 0)

	v.SetDefault("log.level", "info")
}

// Load builds a Config from defaults, configFiles, the environment and flags,
// in increasing order of precedence, and validates it. Later files override
// earlier ones. Without files, ./config.yaml is read when present. flags may
// be nil.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	readConfigFiles(v, configFiles)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readConfigFiles merges files into v. Unreadable files are logged and
// skipped.
func readConfigFiles(v *viper.Viper, files []string) {
	if len(files) == 0 {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			slog.Warn("skipping config file", "file", "config.yaml", "err", err)
		}
		return
	}

	for _, file := range files {
		v.SetConfigFile(file)
		if err := v.MergeInConfig(); err != nil {
			slog.Warn("skipping config file", "file", file, "err", err)
		}
	}
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	if err := c.Database.Tables.Validate(); err != nil {
		return fmt.Errorf("validate config: database: %w", err)
	}

	if c.Auth.RequiresKeys() && c.Auth.Keys.Empty() {
		return errors.New("validate config: auth: private access requires keys (auth.keys.inline or auth.keys.file)")
	}

	return nil
}
