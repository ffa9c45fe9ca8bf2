// Package config loads the mextdomen configuration from YAML, environment
// variables and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the mextdomen configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MEXTDOMEN_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// DBPath is the location of the encrypted directory database file.
	DBPath string `mapstructure:"db_path" validate:"required" yaml:"db_path"`

	// MasterKeyHex is the 64 character hex encoding of the 32 byte
	// database master key.
	MasterKeyHex string `mapstructure:"master_key_hex" validate:"required,len=64,hexadecimal" yaml:"master_key_hex"`

	// WebServer configures the HTTP/REST API listener.
	WebServer ServerConfig `mapstructure:"web_server" yaml:"web_server"`

	// GRPCServer configures the gRPC API listener.
	GRPCServer ServerConfig `mapstructure:"grpc_server" yaml:"grpc_server"`

	// LDAPServer configures the LDAP listener.
	LDAPServer LDAPServerConfig `mapstructure:"ldap_server" yaml:"ldap_server"`

	// Security groups JWT, password policy and audit settings.
	Security SecurityConfig `mapstructure:"security" yaml:"security"`

	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Paths points at auxiliary directories (keys, certificates, temp).
	Paths PathsConfig `mapstructure:"paths" yaml:"paths"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig holds settings shared by the web and gRPC listeners.
type ServerConfig struct {
	// Address is the host:port to listen on. Empty disables the server.
	Address string `mapstructure:"address" yaml:"address,omitempty"`

	// EnableTLS serves the listener over TLS using the TLS block.
	EnableTLS bool `mapstructure:"enable_tls" yaml:"enable_tls"`

	// TLS holds the certificate material for EnableTLS.
	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`

	// MaxRequestSize caps request bodies in bytes. Default: 10 MiB.
	MaxRequestSize uint64 `mapstructure:"max_request_size" yaml:"max_request_size"`
}

// LDAPServerConfig holds the LDAP listener settings.
type LDAPServerConfig struct {
	// Address is the host:port to listen on. Empty disables the server.
	Address string `mapstructure:"address" yaml:"address,omitempty"`

	// EnableTLS serves LDAPS using the TLS block.
	EnableTLS bool `mapstructure:"enable_tls" yaml:"enable_tls"`

	// TLS holds the certificate material for EnableTLS.
	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`

	// AllowAnonymousBind accepts binds without credentials.
	AllowAnonymousBind bool `mapstructure:"allow_anonymous_bind" yaml:"allow_anonymous_bind"`

	// BaseDN is the directory root advertised to clients.
	BaseDN string `mapstructure:"base_dn" yaml:"base_dn"`

	// MaxConnections limits concurrent LDAP clients. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections,omitempty"`

	// ReadTimeout bounds each wait for the next request. 0 disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout,omitempty"`
}

// TLSConfig holds PEM certificate material.
type TLSConfig struct {
	CertFile           string `mapstructure:"cert_file" yaml:"cert_file,omitempty"`
	KeyFile            string `mapstructure:"key_file" yaml:"key_file,omitempty"`
	CACertFile         string `mapstructure:"ca_cert_file" yaml:"ca_cert_file,omitempty"`
	ClientAuthRequired bool   `mapstructure:"client_auth_required" yaml:"client_auth_required"`
}

// SecurityConfig groups authentication and audit settings.
type SecurityConfig struct {
	JWT            JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	PasswordPolicy PasswordPolicy `mapstructure:"password_policy" yaml:"password_policy"`
	Audit          AuditConfig    `mapstructure:"audit" yaml:"audit"`
}

// JWTConfig configures API token issuance.
type JWTConfig struct {
	// Algorithm is the signing algorithm. Only RS256 is supported.
	Algorithm string `mapstructure:"algorithm" validate:"omitempty,oneof=RS256" yaml:"algorithm"`

	// SecretKey is reserved for symmetric algorithms and currently unused.
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`

	// PrivateKeyPath is the PEM signing key. Falls back to the
	// JWT_PRIVATE_KEY_PATH environment variable when empty.
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`

	// PublicKeyPath is the PEM verification key. Falls back to the
	// JWT_PUBLIC_KEY_PATH environment variable when empty.
	PublicKeyPath string `mapstructure:"public_key_path" yaml:"public_key_path,omitempty"`

	// TokenExpiry is the issued token lifetime. Default: 24h.
	TokenExpiry time.Duration `mapstructure:"token_expiry" yaml:"token_expiry"`
}

// PasswordPolicy constrains user passwords.
type PasswordPolicy struct {
	MinLength           int  `mapstructure:"min_length" validate:"omitempty,min=1,max=128" yaml:"min_length"`
	RequireUppercase    bool `mapstructure:"require_uppercase" yaml:"require_uppercase"`
	RequireLowercase    bool `mapstructure:"require_lowercase" yaml:"require_lowercase"`
	RequireDigits       bool `mapstructure:"require_digits" yaml:"require_digits"`
	RequireSpecialChars bool `mapstructure:"require_special_chars" yaml:"require_special_chars"`
	MaxAgeDays          int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	HistoryCount        int  `mapstructure:"history_count" yaml:"history_count"`
}

// AuditConfig selects where audit records go.
type AuditConfig struct {
	// Backend is FILE, DATABASE or KAFKA.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=FILE DATABASE KAFKA" yaml:"backend"`

	// FilePath is the audit log location for the FILE backend.
	FilePath string `mapstructure:"file_path" yaml:"file_path,omitempty"`

	// DatabaseURL is the sink for the DATABASE backend.
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url,omitempty"`

	// Kafka configures the KAFKA backend.
	Kafka *KafkaConfig `mapstructure:"kafka" yaml:"kafka,omitempty"`
}

// KafkaConfig identifies the audit topic.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers" validate:"required,min=1" yaml:"brokers"`
	Topic    string   `mapstructure:"topic" validate:"required" yaml:"topic"`
	ClientID string   `mapstructure:"client_id" yaml:"client_id,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// EnableJSONOutput switches from text to JSON log lines.
	EnableJSONOutput bool `mapstructure:"enable_json_output" yaml:"enable_json_output"`

	// LogFile redirects logs to a file instead of stdout.
	LogFile string `mapstructure:"log_file" yaml:"log_file,omitempty"`

	// EnableTracing is parsed for compatibility; no exporter is wired.
	EnableTracing bool `mapstructure:"enable_tracing" yaml:"enable_tracing"`
}

// PathsConfig points at auxiliary directories.
type PathsConfig struct {
	KeysDir  string `mapstructure:"keys_dir" yaml:"keys_dir,omitempty"`
	CertsDir string `mapstructure:"certs_dir" yaml:"certs_dir,omitempty"`
	TempDir  string `mapstructure:"temp_dir" yaml:"temp_dir,omitempty"`
}

// MetricsConfig configures Prometheus exposition on the web server.
type MetricsConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint" yaml:"prometheus_endpoint,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to a YAML config file (empty uses the default
//     location, missing file falls back to pure defaults)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with a user-friendly error when the file
// does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Specify a config file:\n"+
				"  mextdomen <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML. Permissions are restricted
// because the file carries the master key.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration against its struct tags plus the
// cross-field audit rules.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	audit := cfg.Security.Audit
	switch audit.Backend {
	case "KAFKA":
		if audit.Kafka == nil {
			return fmt.Errorf("audit backend KAFKA requires a kafka block")
		}
	case "DATABASE":
		if audit.DatabaseURL == "" {
			return fmt.Errorf("audit backend DATABASE requires database_url")
		}
	}

	if cfg.WebServer.EnableTLS && cfg.WebServer.TLS.CertFile == "" {
		return fmt.Errorf("web_server TLS enabled without cert_file")
	}
	if cfg.LDAPServer.EnableTLS && cfg.LDAPServer.TLS.CertFile == "" {
		return fmt.Errorf("ldap_server TLS enabled without cert_file")
	}

	return nil
}

// setupViper wires the environment prefix and config file search.
// Environment variables use the MEXTDOMEN_ prefix with underscores, e.g.
// MEXTDOMEN_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("MEXTDOMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts strings like "30s" and "24h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, honoring
// XDG_CONFIG_HOME.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mextdomen")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mextdomen")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks for a config file at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
