package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testMasterKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
db_path: /var/lib/mextdomen/dir.raddb
master_key_hex: `+testMasterKey+`
ldap_server:
  address: 127.0.0.1:3389
  allow_anonymous_bind: true
security:
  jwt:
    token_expiry: 1h
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/var/lib/mextdomen/dir.raddb" {
		t.Errorf("DBPath = %s", cfg.DBPath)
	}
	if !cfg.LDAPServer.AllowAnonymousBind {
		t.Error("AllowAnonymousBind not set")
	}
	if cfg.LDAPServer.BaseDN != DefaultBaseDN {
		t.Errorf("BaseDN default = %s", cfg.LDAPServer.BaseDN)
	}
	if cfg.Security.JWT.TokenExpiry != time.Hour {
		t.Errorf("TokenExpiry = %v, want 1h", cfg.Security.JWT.TokenExpiry)
	}
	if cfg.Security.JWT.Algorithm != "RS256" {
		t.Errorf("Algorithm default = %s", cfg.Security.JWT.Algorithm)
	}
	if cfg.WebServer.MaxRequestSize != DefaultMaxRequestSize {
		t.Errorf("MaxRequestSize default = %d", cfg.WebServer.MaxRequestSize)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Level = %s, want normalized DEBUG", cfg.Logging.Level)
	}
	if cfg.Security.Audit.Backend != DefaultAuditBackend {
		t.Errorf("audit Backend default = %s", cfg.Security.Audit.Backend)
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
db_path: dir.raddb
master_key_hex: `+testMasterKey+`
logging:
  level: INFO
`)
	t.Setenv("MEXTDOMEN_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Level = %s, want DEBUG from environment", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LDAPServer.BaseDN != DefaultBaseDN {
		t.Errorf("BaseDN = %s", cfg.LDAPServer.BaseDN)
	}
	if !cfg.Security.PasswordPolicy.RequireUppercase {
		t.Error("RequireUppercase default not applied")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing db_path",
			content: "master_key_hex: " + testMasterKey + "\n",
			wantErr: "DBPath",
		},
		{
			name:    "short master key",
			content: "db_path: dir.raddb\nmaster_key_hex: abcd\n",
			wantErr: "MasterKeyHex",
		},
		{
			name: "kafka backend without kafka block",
			content: "db_path: dir.raddb\nmaster_key_hex: " + testMasterKey + "\n" +
				"security:\n  audit:\n    backend: KAFKA\n",
			wantErr: "kafka",
		},
		{
			name: "ldap tls without cert",
			content: "db_path: dir.raddb\nmaster_key_hex: " + testMasterKey + "\n" +
				"ldap_server:\n  enable_tls: true\n",
			wantErr: "cert_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.DBPath = "/data/dir.raddb"
	cfg.MasterKeyHex = testMasterKey
	cfg.LDAPServer.AllowAnonymousBind = true
	cfg.Security.Audit.FilePath = "/var/log/mextdomen.log"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DBPath != cfg.DBPath {
		t.Errorf("DBPath = %s", loaded.DBPath)
	}
	if !loaded.LDAPServer.AllowAnonymousBind {
		t.Error("AllowAnonymousBind lost in round trip")
	}
	if loaded.Security.Audit.FilePath != cfg.Security.Audit.FilePath {
		t.Errorf("audit FilePath = %s", loaded.Security.Audit.FilePath)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Security.JWT.TokenExpiry != DefaultTokenExpiry {
		t.Errorf("TokenExpiry = %v", cfg.Security.JWT.TokenExpiry)
	}
	if cfg.Security.PasswordPolicy.MinLength != 8 {
		t.Errorf("MinLength = %d", cfg.Security.PasswordPolicy.MinLength)
	}
	if cfg.Security.PasswordPolicy.RequireSpecialChars {
		t.Error("RequireSpecialChars should default to false")
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should default to disabled")
	}
}
