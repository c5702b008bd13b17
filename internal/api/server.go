package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/rickgao/robot-telemetry/internal/config"
	"github.com/rickgao/robot-telemetry/internal/snapshot"
	"github.com/rickgao/robot-telemetry/internal/stream"
)

// ServiceName is reported by the liveness route.
const ServiceName = "robot-telemetry"

// Server owns the HTTP listener and routes requests to the snapshot and
// stream services.
type Server struct {
	cfg      *config.Config
	snapshot *snapshot.Service
	streams  *stream.Server
	logger   *slog.Logger
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
}

// NewServer creates a Server. Routes and middleware are built once here.
func NewServer(cfg *config.Config, snap *snapshot.Service, streams *stream.Server, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		snapshot: snap,
		streams:  streams,
		logger:   logger,
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.handler = corsMiddleware(cfg.CORS)(
		requestIDMiddleware(
			loggingMiddleware(logger, mux),
		),
	)

	return s
}

// RegisterRoutes adds every route to mux. GET patterns also answer HEAD.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /robots", s.handleRobots)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET "+s.cfg.Stream.Path, s.streams)
	mux.HandleFunc("/", s.handleNotFound)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. Request contexts derive from ctx, so
// cancelling ctx also cancels open streams. A clean Stop returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.mu.Lock()
	s.httpServer = hs
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Addr returns the bound listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop stops accepting requests, then cancels open streams and waits for
// both to drain or for ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()

	var errs []error
	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
	}
	if err := s.streams.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown streams: %w", err))
	}

	s.logger.Info("http server stopped")
	return errors.Join(errs...)
}
