package connection

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/rickgao/robot-telemetry/internal/model"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrStreamEnded   = errors.New("stream ended by server")
	ErrUnknownFrame  = errors.New("unknown frame")
)

// Frame is one decoded server message.
type Frame struct {
	Robots     []model.WireRecord // Set for data frames
	Error      string             // Set for the terminal error frame
	ReceivedAt time.Time          // Local timestamp when ReadMessage returned
}

// Terminal reports whether the server will close the stream after this
// frame.
func (f Frame) Terminal() bool {
	return f.Error != ""
}

// DecodeFrame parses a raw frame. Arrays are record batches; objects are
// error frames.
func DecodeFrame(data []byte, receivedAt time.Time) (Frame, error) {
	frame := Frame{ReceivedAt: receivedAt}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("%w: empty message", ErrUnknownFrame)
	}

	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &frame.Robots); err != nil {
			return Frame{}, fmt.Errorf("decode records: %w", err)
		}
	case '{':
		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return Frame{}, fmt.Errorf("decode error frame: %w", err)
		}
		if msg.Error == "" {
			return Frame{}, fmt.Errorf("%w: object without error field", ErrUnknownFrame)
		}
		frame.Error = msg.Error
	default:
		return Frame{}, fmt.Errorf("%w: starts with %q", ErrUnknownFrame, trimmed[0])
	}

	return frame, nil
}

// ClientConfig configures a stream Client.
type ClientConfig struct {
	URL              string        // Stream URL (e.g., ws://localhost:8000/ws/robots)
	Origin           string        // Optional Origin header
	HandshakeTimeout time.Duration // Per-attempt handshake timeout
	ReadTimeout      time.Duration // Max wait for the next frame (0 = no limit)
	DialAttempts     uint          // Connect attempts before giving up
	DialDelay        time.Duration // Base backoff between attempts
}

// DefaultClientConfig returns sensible defaults. ReadTimeout is three push
// intervals of the default server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:              "ws://localhost:8000/ws/robots",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      15 * time.Second,
		DialAttempts:     5,
		DialDelay:        500 * time.Millisecond,
	}
}
