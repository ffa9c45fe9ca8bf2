// Package grpcapi serves the directory's user and auth APIs over gRPC.
// Service shapes live in proto/; the message structs in this package carry
// the same field numbers and are served through the standard proto codec,
// so protoc-generated clients interoperate. A JSON codec is registered as
// well for clients that negotiate the "json" content-subtype.
package grpcapi

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/auth"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

// Config configures the gRPC server.
type Config struct {
	// Address is the host:port to bind, e.g. 127.0.0.1:50051.
	Address string

	// MaxRequestSize caps the decoded size of a single request message.
	// Zero keeps the grpc-go default.
	MaxRequestSize int

	// ShutdownTimeout bounds the graceful drain on Stop. Connections still
	// open after it elapses are closed forcibly. Default: 10s.
	ShutdownTimeout time.Duration
}

// Server hosts the UserApi and AuthService services.
type Server struct {
	config  Config
	grpc    *grpc.Server
	service *directory.Service
	tokens  *auth.TokenService

	listenerMu    sync.Mutex
	listener      net.Listener
	listenerReady chan struct{}
}

// NewServer creates a stopped server; call Serve to start it.
func NewServer(config Config, service *directory.Service, tokens *auth.TokenService) *Server {
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	var opts []grpc.ServerOption
	if config.MaxRequestSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(config.MaxRequestSize))
	}

	s := &Server{
		config:        config,
		grpc:          grpc.NewServer(opts...),
		service:       service,
		tokens:        tokens,
		listenerReady: make(chan struct{}),
	}

	s.grpc.RegisterService(&UserAPIServiceDesc, NewUserService(service))
	s.grpc.RegisterService(&AuthAPIServiceDesc, NewAuthAPIService(service, tokens))

	return s
}

// Serve listens on the configured address and blocks until the context is
// cancelled or the server fails. Cancellation triggers a graceful drain.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("grpcapi: listen on %s: %w", s.config.Address, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("gRPC server listening", "address", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.grpc.Serve(listener); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gRPC server shutdown signal received")
		s.drain()
		return nil
	case err := <-errChan:
		return fmt.Errorf("grpcapi: serve: %w", err)
	}
}

// Stop drains the server outside the Serve goroutine.
func (s *Server) Stop() {
	s.drain()
}

// drain stops gracefully, falling back to a hard stop after the shutdown
// timeout.
func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("gRPC server stopped gracefully")
	case <-time.After(s.config.ShutdownTimeout):
		logger.Warn("gRPC graceful stop timed out, forcing close")
		s.grpc.Stop()
	}
}

// Addr returns the bound address. Blocks until the listener is ready.
func (s *Server) Addr() net.Addr {
	<-s.listenerReady
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	return s.listener.Addr()
}
