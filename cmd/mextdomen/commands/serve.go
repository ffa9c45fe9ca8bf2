package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/api"
	"github.com/mextdomen/mextdomen/pkg/auth"
	"github.com/mextdomen/mextdomen/pkg/config"
	"github.com/mextdomen/mextdomen/pkg/events"
	"github.com/mextdomen/mextdomen/pkg/grpcapi"
	"github.com/mextdomen/mextdomen/pkg/ldap"
	"github.com/mextdomen/mextdomen/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the directory servers",
	Long: `Run the REST, gRPC and LDAP servers against the configured database.

Each listener is enabled by setting its address in the configuration;
an empty address disables that server. The process shuts down cleanly
on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	hub := events.NewHub(0)

	service, err := openService(cfg, hub)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer func() { _ = service.Close() }()

	tokens, err := auth.NewTokenService(auth.Config{
		PrivateKeyPath: cfg.Security.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.Security.JWT.PublicKeyPath,
		Expiry:         cfg.Security.JWT.TokenExpiry,
	})
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		service.DB().SetFlushObserver(m.ObserveFlush)

		auditCh, cancelSub := hub.Subscribe()
		defer cancelSub()
		go m.Consume(auditCh)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, 3)
	started := 0

	if cfg.WebServer.Address != "" {
		routerOpts := api.RouterOptions{}
		if m != nil {
			routerOpts.MetricsHandler = m.Handler()
			routerOpts.MetricsEndpoint = cfg.Metrics.PrometheusEndpoint
		}
		webServer := api.NewServer(api.APIConfig{Address: cfg.WebServer.Address},
			api.NewRouter(service, tokens, routerOpts))

		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := webServer.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	if cfg.GRPCServer.Address != "" {
		grpcServer := grpcapi.NewServer(grpcapi.Config{
			Address:        cfg.GRPCServer.Address,
			MaxRequestSize: int(cfg.GRPCServer.MaxRequestSize),
		}, service, tokens)

		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := grpcServer.Serve(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	if cfg.LDAPServer.Address != "" {
		ldapConfig, err := buildLDAPConfig(&cfg.LDAPServer)
		if err != nil {
			return err
		}
		ldapServer := ldap.NewServer(ldapConfig, service)
		if m != nil {
			ldapServer.Metrics = m.LDAP()
		}

		started++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ldapServer.Serve(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	if started == 0 {
		return fmt.Errorf("no servers enabled: set web_server, grpc_server or ldap_server addresses")
	}

	logger.Info("mextdomen serving", "servers", started, "db", cfg.DBPath)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errChan:
		logger.Error("server failed, shutting down", "error", serveErr)
		cancel()
	}

	wg.Wait()
	return serveErr
}

// buildLDAPConfig translates the file configuration into the LDAP server's
// own config, loading TLS material when LDAPS is enabled.
func buildLDAPConfig(cfg *config.LDAPServerConfig) (ldap.Config, error) {
	host, portStr, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		return ldap.Config{}, fmt.Errorf("ldap address %q: %w", cfg.Address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return ldap.Config{}, fmt.Errorf("ldap port %q: %w", portStr, err)
	}

	out := ldap.Config{
		BindAddress:    host,
		Port:           port,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		AllowAnonymous: cfg.AllowAnonymousBind,
	}

	if cfg.EnableTLS {
		tlsConfig, err := ldap.LoadServerTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return ldap.Config{}, fmt.Errorf("ldap TLS: %w", err)
		}
		out.TLS = tlsConfig
	}

	return out, nil
}
