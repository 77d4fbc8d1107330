package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/httputil"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 16 << 10

	// msgDeselect closes the info card; any other type is a pointer event.
	msgDeselect = "deselect"
)

func (h *Handler) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts handshakes without an Origin header, from the page's
// own host, or from a configured origin. "*" in AllowedOrigins accepts any.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	metrics.IncStreamError(transportWS, "origin")
	h.logger.Warn("websocket origin rejected", "origin", origin, "host", r.Host)
	return false
}

// errorMessage reports a rejected inbound message to the viewer.
type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// subscriber is one websocket viewer.
type subscriber struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	session string
	ip      string
}

// WriteMessage sends a websocket message guarded by the subscriber's mutex and write deadline.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	if s == nil || s.conn == nil {
		return errors.New("subscriber closed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) writeJSON(msgType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.StreamWrote(transportWS, msgType, len(data))
	return nil
}

func (s *subscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Interactor is a Source that also accepts a close-card request.
type Interactor interface {
	Source
	CloseCard() error
}

// HandleWS serves the bidirectional websocket stream. Frames flow to the
// viewer; pointer events and deselect requests flow back.
// GET /api/v1/ws?fps=10
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	fps, err := h.parseFPS(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip := h.clientIP(r)
	if !h.admit(w, ip, transportWS) {
		return
	}
	defer h.limiter.release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.IncStreamError(transportWS, "upgrade")
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{conn: conn, session: uuid.NewString(), ip: ip}
	logger := h.logger.With("transport", transportWS, "session_id", sub.session, "remote_ip", ip)

	metrics.StreamOpened(transportWS)
	startTime := time.Now()
	logger.Info("stream connected", "user_agent", r.Header.Get("User-Agent"), "fps", fps)
	defer func() {
		metrics.StreamClosed(transportWS)
		logger.Info("stream disconnected", "duration_seconds", int(time.Since(startTime).Seconds()))
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		h.readLoop(sub, logger)
	}()

	h.writeLoop(ctx, sub, fps, logger)

	// Unblock the reader and wait for it before returning the slot.
	conn.Close()
	<-readDone
}

func (h *Handler) writeLoop(ctx context.Context, sub *subscriber, fps int, logger *slog.Logger) {
	if err := sub.writeJSON("static", h.source.Static()); err != nil {
		metrics.IncStreamError(transportWS, "send_error")
		logger.Warn("stream send error (static)", "error", err)
		return
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

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
			if err := sub.writeJSON("frame", frame); err != nil {
				metrics.IncStreamError(transportWS, "send_error")
				logger.Debug("stream send error", "error", err)
				return
			}

		case <-pingTicker.C:
			if err := sub.ping(); err != nil {
				metrics.IncStreamError(transportWS, "ping")
				logger.Debug("stream ping error", "error", err)
				return
			}
		}
	}
}

func (h *Handler) readLoop(sub *subscriber, logger *slog.Logger) {
	conn := sub.conn
	conn.SetReadLimit(maxInboundSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.IncStreamError(transportWS, "read_error")
				logger.Debug("stream read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handleInbound(data); err != nil {
			metrics.IncStreamError(transportWS, "bad_message")
			if werr := sub.writeJSON("error", errorMessage{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

func (h *Handler) handleInbound(data []byte) error {
	var in globe.PointerInput
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.New("invalid JSON message")
	}
	if in.Type == msgDeselect {
		ia, ok := h.source.(Interactor)
		if !ok {
			return errors.New("deselect not supported")
		}
		return ia.CloseCard()
	}
	return h.source.Pointer(in)
}
