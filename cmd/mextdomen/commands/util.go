package commands

import (
	"fmt"
	"time"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/config"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/events"
	"github.com/mextdomen/mextdomen/pkg/raddb"
)

// loadConfig loads the configuration and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.DBPath = flagDataDir
	}
	if flagKey != "" {
		cfg.MasterKeyHex = flagKey
	}
	return cfg, nil
}

// openService opens the directory database named by the configuration.
// The caller owns the returned service and must Close it.
func openService(cfg *config.Config, hub *events.Hub) (*directory.Service, error) {
	key, err := raddb.ParseKeyHex(cfg.MasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	opts := []directory.Option{}
	if hub != nil {
		opts = append(opts, directory.WithHub(hub))
	}
	if cfg.Security.Audit.Backend == "FILE" && cfg.Security.Audit.FilePath != "" {
		opts = append(opts, directory.WithAuditLog(cfg.Security.Audit.FilePath))
	}

	return directory.Open(cfg.DBPath, key, opts...)
}

// withService opens the directory, runs fn, and closes it again.
func withService(fn func(*directory.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	service, err := openService(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()
	return fn(service)
}

// setupLogging points the process logger at the configured sink.
func setupLogging(cfg *config.Config) error {
	format := "text"
	if cfg.Logging.EnableJSONOutput {
		format = "json"
	}
	output := ""
	if cfg.Logging.LogFile != "" {
		output = cfg.Logging.LogFile
	}
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: format,
		Output: output,
	})
}

// formatTime renders a timestamp for table output.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatTimePtr renders an optional timestamp for table output.
func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

// yesNo renders a boolean for table output.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
