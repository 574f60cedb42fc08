package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 5 * time.Second
	maxFrameSize = 4096
)

// Client represents a websocket subscriber. Subscribers only listen, so
// inbound data frames are discarded; control frames keep the idle deadline
// moving.
type Client struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	log   *slog.Logger
	topic string
	done  chan struct{}
	once  sync.Once
}

// NewClient constructs a client wrapper for a connection subscribed to topic.
func NewClient(conn *websocket.Conn, topic string, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger.With("topic", topic), topic: topic, done: make(chan struct{})}
}

// Send writes a message to the websocket connection.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		c.Close()
		return err
	}
	return nil
}

// Ping sends a ping control frame.
func (c *Client) Ping() error {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		c.log.Debug("websocket ping failed", "error", err)
		return err
	}
	return nil
}

// Keepalive pings the peer every interval until the client is closed or a
// ping fails.
func (c *Client) Keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				c.Close()
				return
			}
		}
	}
}

// Listen reads from the connection until it fails or nothing, not even a
// pong, arrives within idle.
func (c *Client) Listen(idle time.Duration) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			var ne interface{ Timeout() bool }
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				c.log.Info("websocket subscriber idle, disconnecting")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				c.log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(idle))
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a going-away frame and terminates the connection.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}
