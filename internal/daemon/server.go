package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
	"go.uber.org/zap"
)

// Server manages the control API's HTTP server lifecycle for a session daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates an HTTP server bound to the session's Unix domain socket.
func NewServer(p Params, logger *zap.Logger, svc *api.Service) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	return &Server{
		httpServer: &http.Server{Handler: svc.Router()},
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving API requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("control API starting", zap.String("socket", s.socketPath))
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("control API stopping")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		_ = s.httpServer.Close()
	}
	_ = os.Remove(s.socketPath)
}
