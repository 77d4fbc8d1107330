package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
)

const writeWait = 30 * time.Second

// errEncode marks a message that could not be marshalled; the stream itself
// is still usable.
var errEncode = errors.New("encoding message")

// frameGate passes each rendered frame number once per viewer.
type frameGate struct {
	last uint64
	seen bool
}

func (g *frameGate) admit(frame uint64) bool {
	if g.seen && frame == g.last {
		return false
	}
	g.last, g.seen = frame, true
	return true
}

// sseConn writes scene messages to one event-stream response.
type sseConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messages int64
	bytes    int64
}

// retry tells the browser how long to wait before reconnecting.
func (c *sseConn) retry(d time.Duration) error {
	return c.write("retry", fmt.Appendf(nil, "retry: %d\n\n", d.Milliseconds()))
}

// message writes v as a single data line. kind labels the write metrics.
func (c *sseConn) message(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errEncode, kind, err)
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	if err := c.write(kind, buf); err != nil {
		return err
	}
	c.messages++
	return nil
}

// keepalive writes an empty comment line.
func (c *sseConn) keepalive() error {
	return c.write("keepalive", []byte(":\n\n"))
}

func (c *sseConn) write(kind string, b []byte) error {
	// The server-wide WriteTimeout is cleared for streams; each write gets its own.
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := c.w.Write(b)
	c.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("writing %s: %w", kind, err)
	}
	c.flusher.Flush()
	metrics.StreamWrote(transportSSE, kind, n)
	return nil
}
