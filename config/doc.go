// Package config loads the bucketry server configuration.
//
// A Config is assembled by viper from four layers, each overriding the one
// before it:
//
//  1. built-in defaults (see setDefaults)
//  2. YAML files, merged in the order given
//  3. BUCKETRY_* environment variables
//  4. command line flags
//
// Nested keys map to environment names by upper-casing and replacing dots
// with underscores, so s3.max_clock_skew is read from BUCKETRY_S3_MAX_CLOCK_SKEW.
// List values such as s3.domains are comma separated. Durations use Go
// syntax ("30s", "15m").
//
// Load validates the result with go-playground/validator struct tags, then
// applies the cross-field checks in Validate: table names must be plain SQL
// identifiers, and a private read or write mode needs at least one key.
//
// The CLI stores the loaded Config on the command context with WithContext,
// and subcommands read it back with FromContext.
package config
