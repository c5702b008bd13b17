package stream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/robot-telemetry/internal/clock"
	"github.com/rickgao/robot-telemetry/internal/store"
)

// Server upgrades HTTP requests to websocket sessions and runs one push
// loop per session.
type Server struct {
	cfg      Config
	loader   store.Loader
	clock    clock.Clock
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewServer creates a stream Server. A nil clock uses clock.Real().
func NewServer(cfg Config, loader store.Loader, clk clock.Clock, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}

	s := &Server{
		cfg:    cfg,
		loader: loader,
		clock:  clk,
		logger: logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s
}

// ServeHTTP handles one streaming connection for its whole lifetime.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.logger.Warn("websocket upgrade failed",
			"remote", r.RemoteAddr,
			"error", err,
		)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	sess := newSession(s, conn, uuid.New(), r.RemoteAddr)

	s.active.Add(1)
	defer s.active.Add(-1)

	sess.logger.Info("stream opened", "active", s.active.Load())
	reason := sess.run(ctx)
	sess.close(reason)
	sess.logger.Info("stream closed",
		"reason", reason.String(),
		"pushes", sess.pushes,
	)
}

// Active returns the number of open sessions.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// Shutdown stops accepting sessions, cancels every open one and waits for
// them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stream server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// originChecker builds the upgrader's origin policy. Requests without an
// Origin header (non-browser clients) are always accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
