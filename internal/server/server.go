// Package server exposes the gate as an HTTP service bound to a unix domain
// socket. The service has a single route, POST /; access control is the
// socket's file permissions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"git.cscs.ch/openchami/chamicore-sqlgate/internal/gate"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	maxBodyBytes      = 1 << 20

	defaultRequestTimeout = 30 * time.Second
)

// Server serves validation requests on a unix domain socket.
type Server struct {
	gate       *gate.Gate
	socketPath string
	timeout    time.Duration
	logger     zerolog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger attaches a component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With().Str("component", "server").Logger()
	}
}

// WithRequestTimeout bounds how long one validation may take end to end.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a server for the given socket path, delegating validation to g.
func New(socketPath string, g *gate.Gate, opts ...Option) *Server {
	s := &Server{
		gate:       g,
		socketPath: socketPath,
		timeout:    defaultRequestTimeout,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run binds the socket and serves until ctx is cancelled, then shuts down
// gracefully and removes the socket file. A stale socket left behind by an
// earlier process is removed before binding; the fresh socket is restricted
// to the owning user.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	s.logger.Info().Str("socket", s.socketPath).Msg("sqlgate listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("shutdown incomplete, closing")
			_ = srv.Close()
		}
		<-serveErr
		s.removeSocket()
		s.logger.Info().Msg("sqlgate stopped")
		return nil
	case err := <-serveErr:
		s.removeSocket()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func (s *Server) listen() (net.Listener, error) {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on unix socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn().Err(err).Msg("failed to chmod socket")
	}
	return ln, nil
}

func (s *Server) removeSocket() {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			s.logger.Error().Err(err).Msg("error removing socket file")
		}
	}
}
