// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexiduel Contributors

// Package config loads service configuration from an optional YAML file with
// command-line flag overrides.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds everything the serve and migrate commands need.
type Config struct {
	// ListenAddr is the API listen address.
	ListenAddr string `koanf:"listen_addr"`
	// MetricsAddr is the observability listen address.
	MetricsAddr string `koanf:"metrics_addr"`
	// DatabaseURL is the Postgres DSN. The DATABASE_URL environment
	// variable takes lowest precedence.
	DatabaseURL string `koanf:"database_url"`
	// OTPGatewayURL is the OTP gateway endpoint.
	OTPGatewayURL string `koanf:"otp_gateway_url"`
	// OTPGatewayAuth is the Authorization header value sent to the
	// gateway, if any.
	OTPGatewayAuth string `koanf:"otp_gateway_auth"`
	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`
	// LogLevel is "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level"`
}

// RegisterFlags declares the config flags with their defaults. Flag values
// override the config file; file values override flag defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("listen-addr", ":8080", "API listen address")
	flags.String("metrics-addr", "127.0.0.1:9100", "metrics listen address")
	flags.String("database-url", "", "Postgres DSN (defaults to $DATABASE_URL)")
	flags.String("otp-gateway-url", "", "OTP gateway endpoint URL")
	flags.String("otp-gateway-auth", "", "Authorization header for the OTP gateway")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

// Load builds the configuration. Precedence, lowest first: DATABASE_URL
// environment variable, YAML config file, explicitly set flags. path may be
// empty, in which case no file is read.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	// Flag names use dashes; config keys use underscores.
	provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "apply flag overrides").
			Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log format must be json or text")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("CONFIG_INVALID").
			With("log_level", c.LogLevel).
			Errorf("unknown log level")
	}
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen address is required")
	}
	return nil
}
