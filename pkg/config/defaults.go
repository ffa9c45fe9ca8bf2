package config

import (
	"strings"
	"time"
)

// Default values applied to unspecified fields.
const (
	DefaultMaxRequestSize = 10 * 1024 * 1024
	DefaultBaseDN         = "DC=corp,DC=acme,DC=com"
	DefaultTokenExpiry    = 24 * time.Hour
	DefaultAuditBackend   = "FILE"

	defaultPasswordMinLength    = 8
	defaultPasswordMaxAgeDays   = 90
	defaultPasswordHistoryCount = 5
)

// ApplyDefaults sets defaults for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved. Boolean policy
// flags cannot be distinguished from "unset", so their defaults live in
// GetDefaultConfig only.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.WebServer)
	applyServerDefaults(&cfg.GRPCServer)
	applyLDAPDefaults(&cfg.LDAPServer)
	applySecurityDefaults(&cfg.Security)
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
}

func applyLDAPDefaults(cfg *LDAPServerConfig) {
	if cfg.BaseDN == "" {
		cfg.BaseDN = DefaultBaseDN
	}
}

func applySecurityDefaults(cfg *SecurityConfig) {
	if cfg.JWT.Algorithm == "" {
		cfg.JWT.Algorithm = "RS256"
	}
	if cfg.JWT.TokenExpiry == 0 {
		cfg.JWT.TokenExpiry = DefaultTokenExpiry
	}
	if cfg.PasswordPolicy.MinLength == 0 {
		cfg.PasswordPolicy.MinLength = defaultPasswordMinLength
	}
	if cfg.PasswordPolicy.MaxAgeDays == 0 {
		cfg.PasswordPolicy.MaxAgeDays = defaultPasswordMaxAgeDays
	}
	if cfg.PasswordPolicy.HistoryCount == 0 {
		cfg.PasswordPolicy.HistoryCount = defaultPasswordHistoryCount
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.PrometheusEndpoint == "" {
		cfg.PrometheusEndpoint = "/metrics"
	}
}

// GetDefaultConfig returns a Config with every default applied. Useful for
// generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		DBPath: "mextdomen.raddb",
		WebServer: ServerConfig{
			Address: "127.0.0.1:8080",
		},
		GRPCServer: ServerConfig{
			Address: "127.0.0.1:50051",
		},
		LDAPServer: LDAPServerConfig{
			Address: "127.0.0.1:389",
		},
		Security: SecurityConfig{
			PasswordPolicy: PasswordPolicy{
				RequireUppercase: true,
				RequireLowercase: true,
				RequireDigits:    true,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
