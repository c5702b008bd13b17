package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/rickgao/robot-telemetry/internal/clock"
	"github.com/rickgao/robot-telemetry/internal/model"
	"github.com/rickgao/robot-telemetry/internal/store"
)

// session is one client connection. Only the run goroutine writes data
// frames; the read loop only drains the connection.
type session struct {
	cfg    Config
	loader store.Loader
	clock  clock.Clock
	logger *slog.Logger

	conn   *websocket.Conn
	gone   chan struct{} // closed when the read loop exits
	pushes int
}

func newSession(s *Server, conn *websocket.Conn, id uuid.UUID, remote string) *session {
	return &session{
		cfg:    s.cfg,
		loader: s.loader,
		clock:  s.clock,
		logger: s.logger.With("session", id.String(), "remote", remote),
		conn:   conn,
		gone:   make(chan struct{}),
	}
}

// run pushes until the session reaches a terminal state.
func (s *session) run(ctx context.Context) CloseReason {
	go s.readLoop()

	for {
		select {
		case <-ctx.Done():
			return ReasonCancelled
		case <-s.gone:
			return ReasonClientDisconnected
		default:
		}

		if reason, done := s.push(); done {
			return reason
		}

		select {
		case <-ctx.Done():
			return ReasonCancelled
		case <-s.gone:
			return ReasonClientDisconnected
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// push performs one load-and-send step. done is true when the session
// must end.
func (s *session) push() (reason CloseReason, done bool) {
	records, err := s.loader.Load()
	if err != nil {
		s.logger.Error("stream load failed",
			"kind", store.Kind(err),
			"error", err,
		)
		s.sendError(err.Error())
		return ReasonUnexpectedError, true
	}

	if len(records) == 0 {
		s.logger.Warn("stream store is empty")
		s.sendError(store.ErrNoData.Error())
		return ReasonEmptyData, true
	}

	payload, err := json.Marshal(model.WireRecords(records))
	if err != nil {
		s.logger.Error("failed to encode records", "error", err)
		s.sendError("failed to encode robot data")
		return ReasonUnexpectedError, true
	}

	if err := s.write(payload); err != nil {
		s.logger.Debug("stream write failed", "error", err)
		return ReasonClientDisconnected, true
	}

	s.pushes++
	return 0, false
}

// sendError writes the terminal error frame. Failures are logged only;
// the session is closing either way.
func (s *session) sendError(msg string) {
	payload, err := json.Marshal(ErrorFrame{Error: msg})
	if err != nil {
		s.logger.Error("failed to encode error frame", "error", err)
		return
	}
	if err := s.write(payload); err != nil {
		s.logger.Debug("failed to send error frame", "error", err)
	}
}

func (s *session) write(payload []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop discards client messages until the connection fails or is
// closed, then signals gone. Without a read limit any message size is
// accepted; with one, an oversized message ends the session.
func (s *session) readLoop() {
	defer close(s.gone)

	if s.cfg.ReadLimit > 0 {
		s.conn.SetReadLimit(s.cfg.ReadLimit)
	}

	for {
		_, r, err := s.conn.NextReader()
		if err == nil {
			// Drained without buffering, so message size costs nothing.
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.logger.Warn("client message exceeded read limit", "limit", s.cfg.ReadLimit)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("stream read error", "error", err)
			}
			return
		}
	}
}

// close releases the connection and waits for the read loop to exit.
func (s *session) close(reason CloseReason) {
	if reason != ReasonClientDisconnected {
		code := websocket.CloseNormalClosure
		if reason == ReasonCancelled {
			code = websocket.CloseGoingAway
		}
		deadline := time.Now().Add(time.Second)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason.String()), deadline)
	}

	s.conn.Close()
	<-s.gone
}
