package ldap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mextdomen/mextdomen/internal/logger"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

// Config holds the LDAP server settings.
type Config struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on.
	Port int

	// MaxConnections limits concurrent client connections. 0 means unlimited.
	MaxConnections int

	// ShutdownTimeout bounds the wait for active connections during Stop.
	ShutdownTimeout time.Duration

	// ReadTimeout bounds each wait for the next request on a connection.
	// 0 disables the deadline.
	ReadTimeout time.Duration

	// AllowAnonymous accepts binds that carry neither DN nor password.
	AllowAnonymous bool

	// TLS enables LDAPS on the listener when non-nil.
	TLS *tls.Config
}

// MetricsRecorder receives connection and search lifecycle events.
// A nil recorder disables collection.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionClosed()
	SetActiveConnections(count int32)
	RecordBind(success bool)
	RecordSearch(entries int)
}

// Server is the LDAP front end over a directory service. It owns the TCP
// listener lifecycle; protocol work happens per connection in conn.
type Server struct {
	config  Config
	service *directory.Service

	// Metrics is optional; set before Serve.
	Metrics MetricsRecorder

	listener      net.Listener
	listenerMu    sync.RWMutex
	listenerReady chan struct{}

	activeConns  sync.WaitGroup
	connCount    atomic.Int32
	connSem      chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	activeSockets sync.Map
}

// NewServer creates a stopped LDAP server. Call Serve to start it.
func NewServer(config Config, service *directory.Service) *Server {
	var sem chan struct{}
	if config.MaxConnections > 0 {
		sem = make(chan struct{}, config.MaxConnections)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		service:        service,
		listenerReady:  make(chan struct{}),
		connSem:        sem,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
	}
}

// Serve runs the accept loop until ctx is cancelled or Stop is called.
// It returns nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create LDAP listener on %s: %w", addr, err)
	}
	if s.config.TLS != nil {
		listener = tls.NewListener(listener, s.config.TLS)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("LDAP server listening", "address", listener.Addr().String(), "tls", s.config.TLS != nil)

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	for {
		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.shutdown:
				return s.drainConnections()
			}
		}

		socket, err := listener.Accept()
		if err != nil {
			if s.connSem != nil {
				<-s.connSem
			}
			select {
			case <-s.shutdown:
				return s.drainConnections()
			default:
				logger.Debug("Error accepting LDAP connection", "error", err)
				continue
			}
		}

		s.activeConns.Add(1)
		active := s.connCount.Add(1)
		remote := socket.RemoteAddr().String()
		s.activeSockets.Store(remote, socket)

		if s.Metrics != nil {
			s.Metrics.RecordConnectionAccepted()
			s.Metrics.SetActiveConnections(active)
		}
		logger.Debug("LDAP connection accepted", "address", remote, "active", active)

		c := newConn(socket, s.service, s.config, s.Metrics)
		go func() {
			defer func() {
				s.activeSockets.Delete(remote)
				s.activeConns.Done()
				remaining := s.connCount.Add(-1)
				if s.connSem != nil {
					<-s.connSem
				}
				if s.Metrics != nil {
					s.Metrics.RecordConnectionClosed()
					s.Metrics.SetActiveConnections(remaining)
				}
				logger.Debug("LDAP connection closed", "address", remote, "active", remaining)
			}()
			c.serve(s.shutdownCtx)
		}()
	}
}

// Stop initiates graceful shutdown and waits for active connections up to
// the configured timeout. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timeout := s.config.ShutdownTimeout
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		remaining := s.connCount.Load()
		s.forceClose()
		return fmt.Errorf("LDAP shutdown timeout: %d connections force-closed", remaining)
	case <-ctx.Done():
		s.forceClose()
		return ctx.Err()
	}
}

// Addr returns the listen address. It blocks until the listener is ready,
// which makes it safe to call from tests racing Serve.
func (s *Server) Addr() string {
	<-s.listenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveConnections returns the current number of active connections.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("LDAP shutdown initiated")
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing LDAP listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		// Unblock pending reads so connections observe the shutdown.
		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeSockets.Range(func(_, value any) bool {
			if socket, ok := value.(net.Conn); ok {
				_ = socket.SetReadDeadline(deadline)
			}
			return true
		})

		s.cancelRequests()
	})
}

func (s *Server) drainConnections() error {
	active := s.connCount.Load()
	logger.Info("LDAP graceful shutdown: waiting for active connections",
		"active", active, "timeout", s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("LDAP graceful shutdown complete")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("LDAP shutdown timeout exceeded, forcing closure", "active", remaining)
		s.forceClose()
		return fmt.Errorf("LDAP shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Server) forceClose() {
	s.activeSockets.Range(func(key, value any) bool {
		if socket, ok := value.(net.Conn); ok {
			if err := socket.Close(); err != nil {
				logger.Debug("Error force-closing LDAP connection", "address", key, "error", err)
			}
		}
		return true
	})
}
