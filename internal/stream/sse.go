// Package stream pushes the rendered scene to viewers. Clients connect via
// GET /api/v1/stream/frames (Server-Sent Events) or GET /api/v1/ws
// (websocket) and receive the static layer once, then the dynamic layer at
// the requested frame rate.
//
// SSE message format:
//
//	data: {"type":"frame","frame":812,"t":"2026-02-06T04:00:00Z","nodes":[...]}\n\n
//
// First message is always the static layer:
//
//	data: {"type":"static","globe_radius":5,"pool_source":"remote","nodes":[...]}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without a frame.
// Reconnecting clients receive a fresh static message on each connection.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/httputil"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
)

const (
	transportSSE = "sse"
	transportWS  = "ws"

	maxFPS = 60
)

// Source is the scene a stream renders.
type Source interface {
	Static() globe.StaticMessage
	Frame() globe.FrameMessage
	Pointer(in globe.PointerInput) error
}

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	FPS                int           // Default frames per second when ?fps is absent (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive interval (default: 30s).
	TrustProxy         bool          // Read client IP from X-Forwarded-For / X-Real-IP.
	AllowedOrigins     []string      // Cross-origin websocket pages allowed besides the host itself.
}

func (c Config) withDefaults() Config {
	if c.FPS <= 0 || c.FPS > maxFPS {
		c.FPS = 10
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	return c
}

// Handler manages streaming connections.
type Handler struct {
	source   Source
	config   Config
	limiter  *streamLimiter
	upgrader *websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	h := &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
	h.upgrader = h.newUpgrader()
	return h
}

// Active returns the number of open viewer connections.
func (h *Handler) Active() int {
	return h.limiter.totalCount()
}

func (h *Handler) clientIP(r *http.Request) string {
	return httputil.ClientIP(r, h.config.TrustProxy)
}

// parseFPS reads ?fps, falling back to the configured default.
func (h *Handler) parseFPS(r *http.Request) (int, error) {
	v := r.URL.Query().Get("fps")
	if v == "" {
		return h.config.FPS, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxFPS {
		return 0, fmt.Errorf("invalid fps parameter, must be 1-%d", maxFPS)
	}
	return n, nil
}

// admit takes a limiter slot for ip or writes 429.
func (h *Handler) admit(w http.ResponseWriter, ip, transport string) bool {
	if h.limiter.acquire(ip) {
		return true
	}
	metrics.IncStreamError(transport, "rate_limit")
	h.logger.Warn("stream rate limit exceeded",
		"transport", transport,
		"remote_ip", ip,
		"current_count", h.limiter.count(ip),
	)
	w.Header().Set("Retry-After", "30")
	httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
	return false
}

// HandleFrames serves the SSE frame stream.
// GET /api/v1/stream/frames?fps=10
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	fps, err := h.parseFPS(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := h.clientIP(r)
	if !h.admit(w, ip, transportSSE) {
		return
	}

	metrics.StreamOpened(transportSSE)

	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", transportSSE,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"fps", fps,
	)

	c := &sseConn{logger: h.logger}

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClosed(transportSSE)
		h.logger.Info("stream disconnected",
			"transport", transportSSE,
			"remote_ip", ip,
			"messages", c.messages,
			"bytes", c.bytes,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c.w, c.flusher, c.rc = w, flusher, rc

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.retry(3*time.Second + rand.N(4*time.Second)); err != nil {
		metrics.IncStreamError(transportSSE, "send_error")
		return
	}

	if err := c.message("static", h.source.Static()); err != nil {
		metrics.IncStreamError(transportSSE, "send_error")
		h.logger.Warn("stream send error (static)", "remote_ip", ip, "error", err)
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	var gate frameGate

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			frame := h.source.Frame()
			if !gate.admit(frame.Frame) {
				continue
			}
			err := c.message("frame", frame)
			if errors.Is(err, errEncode) {
				metrics.IncStreamError(transportSSE, "marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err != nil {
				metrics.IncStreamError(transportSSE, "send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.keepalive(); err != nil {
				metrics.IncStreamError(transportSSE, "send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
