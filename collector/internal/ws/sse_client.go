package ws

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// SSEClient streams Server-Sent Events over an HTTP response writer.
type SSEClient struct {
	writeMu sync.Mutex
	writer  io.Writer
	rc      *http.ResponseController
	log     *slog.Logger
	event   string
	done    chan struct{}
	once    sync.Once

	mu   sync.Mutex
	last time.Time
}

// NewSSEClient builds an SSE client whose frames carry the given event name.
func NewSSEClient(w http.ResponseWriter, event string, logger *slog.Logger) *SSEClient {
	return &SSEClient{
		writer: w,
		rc:     http.NewResponseController(w),
		log:    logger,
		event:  event,
		done:   make(chan struct{}),
		last:   time.Now().UTC(),
	}
}

// Send emits a data event to the SSE stream.
func (c *SSEClient) Send(payload []byte) error {
	return c.write(func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.event, payload)
		return err
	}, "sse send failed")
}

// Heartbeat emits a comment frame to keep the connection alive.
func (c *SSEClient) Heartbeat() error {
	return c.write(func(w io.Writer) error {
		_, err := fmt.Fprint(w, ": ping\n\n")
		return err
	}, "sse heartbeat failed")
}

// write serialises frames; each one is bounded by writeWait.
func (c *SSEClient) write(frame func(io.Writer) error, failure string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return io.EOF
	}
	_ = c.rc.SetWriteDeadline(time.Now().Add(writeWait))
	err := frame(c.writer)
	if err == nil {
		err = c.rc.Flush()
	}
	if err != nil {
		c.closeDone()
		c.log.Warn(failure, "error", err)
		return err
	}
	c.mu.Lock()
	c.last = time.Now().UTC()
	c.mu.Unlock()
	return nil
}

// Close marks the stream as closed without waiting for an in-flight write.
func (c *SSEClient) Close() {
	c.closeDone()
}

// Wait blocks until no write is in flight. Handlers call it after Close and
// before returning so the response writer is not used afterwards.
func (c *SSEClient) Wait() {
	c.writeMu.Lock()
	c.writeMu.Unlock()
}

func (c *SSEClient) closeDone() {
	c.once.Do(func() { close(c.done) })
}

func (c *SSEClient) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the stream is closed.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
