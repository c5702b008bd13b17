package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrServerClosed = errors.New("stream server closed")
)

// Config configures the stream server.
type Config struct {
	Interval       time.Duration // Delay between pushes
	WriteTimeout   time.Duration // Write deadline per frame
	ReadLimit      int64         // Max inbound message size, 0 = unlimited; client messages are discarded
	AllowedOrigins []string      // Browser origins allowed to connect; "*" allows any
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Second,
		WriteTimeout:   10 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// CloseReason records why a session ended.
type CloseReason int

const (
	ReasonEmptyData CloseReason = iota + 1
	ReasonClientDisconnected
	ReasonCancelled
	ReasonUnexpectedError
)

func (r CloseReason) String() string {
	switch r {
	case ReasonEmptyData:
		return "empty-data"
	case ReasonClientDisconnected:
		return "client-disconnected"
	case ReasonCancelled:
		return "cancelled"
	case ReasonUnexpectedError:
		return "unexpected-error"
	default:
		return "unknown"
	}
}

// ErrorFrame is the terminal message sent before the server closes a
// stream. Clients must treat it as end of stream.
type ErrorFrame struct {
	Error string `json:"error"`
}
