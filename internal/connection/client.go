package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"
)

// Client is a single consumer connection to the robot stream.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool
}

// NewClient creates a new stream client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialAttempts == 0 {
		cfg.DialAttempts = 1
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect dials the stream, retrying with exponential backoff. It gives up
// after cfg.DialAttempts or when ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			conn, _, err = dialer.DialContext(ctx, c.cfg.URL, header)
			return err
		},
		retry.Attempts(c.cfg.DialAttempts),
		retry.Delay(c.cfg.DialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("stream dial failed",
				"attempt", n+1,
				"url", c.cfg.URL,
				"error", err,
			)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("dial %s: %v", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("stream connected", "url", c.cfg.URL)

	return nil
}

// Next blocks until the next frame arrives. A normal server close is
// reported as ErrStreamEnded; any read error leaves the client
// disconnected.
func (c *Client) Next() (Frame, error) {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return Frame{}, ErrNotConnected
	}

	if c.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	_, data, err := conn.ReadMessage()
	receivedAt := time.Now()

	if err != nil {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		conn.Close()

		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Frame{}, fmt.Errorf("%w: %v", ErrStreamEnded, err)
		}
		return Frame{}, err
	}

	return DecodeFrame(data, receivedAt)
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close sends a close frame and releases the connection. Calling Close
// more than once is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}
