// Package ops runs the operational HTTP sidecar: liveness and readiness
// probes for process supervisors. Token operations never pass through this
// server; they live on the MCP stdio surface.
package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ReadinessChecker reports whether the application is ready to serve.
type ReadinessChecker interface {
	IsReady() bool
}

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
	checker    ReadinessChecker
	addr       string
}

// New creates the ops server with its middleware chain and probe routes.
func New(checker ReadinessChecker) *Server {
	s := &Server{checker: checker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", livenessHandler())
	mux.HandleFunc("GET /readyz", readinessHandler(checker))

	handler := applyMiddlewares(mux,
		Recovery,
		RequestIDGeneration,
		RequestIDPropagation,
		Logging(slog.Default()),
	)

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving on addr. It returns a channel that receives the
// server's exit error, so the caller can monitor for runtime failures.
func (s *Server) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.addr = listener.Addr().String()
	slog.InfoContext(ctx, "ops server listening", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	return errCh, nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
