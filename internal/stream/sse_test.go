package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/globe"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// fakeSource renders a fixed scene. When advance is set every Frame call
// returns a new frame number.
type fakeSource struct {
	mu       sync.Mutex
	frame    uint64
	advance  bool
	pointers []globe.PointerInput
	closes   int
}

func (f *fakeSource) Static() globe.StaticMessage {
	return globe.StaticMessage{
		Type:        "static",
		GlobeRadius: 5,
		PoolSource:  "remote",
		PoolSize:    1,
		Nodes: []scene.NodeView{
			{ID: 1, Kind: scene.KindSphere, Name: "earth", Radius: 5, Opacity: 0.2},
		},
	}
}

func (f *fakeSource) Frame() globe.FrameMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.advance || f.frame == 0 {
		f.frame++
	}
	return globe.FrameMessage{
		Type:  "frame",
		Frame: f.frame,
		T:     time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Nodes: []scene.NodeView{
			{ID: 7, Kind: scene.KindSphere, Position: [3]float64{0, 0, 5.5}, Radius: 0.06, Opacity: 1, Owner: 25544},
		},
	}
}

func (f *fakeSource) Pointer(in globe.PointerInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointers = append(f.pointers, in)
	return nil
}

func (f *fakeSource) CloseCard() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeSource) counts() (pointers, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pointers), f.closes
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}
}

// sseMessages returns the decoded data lines of an SSE body in order.
func sseMessages(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func runSSE(t *testing.T, h *Handler, query string, d time.Duration) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/v1/stream/frames"+query, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), d)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	h.HandleFrames(w, req)
	return w
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	handler := NewHandler(&fakeSource{advance: true}, testConfig(), testLogger())

	w := runSSE(t, handler, "?fps=20", 400*time.Millisecond)
	resp := w.Result()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	msgs := sseMessages(t, body)
	if len(msgs) < 2 {
		t.Fatalf("got %d messages, want static plus at least one frame", len(msgs))
	}
	if msgs[0]["type"] != "static" {
		t.Errorf("first message type = %v, want static", msgs[0]["type"])
	}
	if msgs[0]["globe_radius"].(float64) != 5 {
		t.Errorf("globe_radius = %v, want 5", msgs[0]["globe_radius"])
	}
	for _, m := range msgs[1:] {
		if m["type"] != "frame" {
			t.Errorf("message type = %v, want frame", m["type"])
		}
		if _, ok := m["nodes"]; !ok {
			t.Error("frame missing nodes")
		}
	}

	// Lines should be "data: ...", "retry: ..." or ":" (keepalive).
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

// TestSSESkipsUnchangedFrames verifies a frame is sent once until the loop renders again.
func TestSSESkipsUnchangedFrames(t *testing.T) {
	handler := NewHandler(&fakeSource{}, testConfig(), testLogger())

	w := runSSE(t, handler, "?fps=50", 300*time.Millisecond)

	msgs := sseMessages(t, w.Body.String())
	frames := 0
	for _, m := range msgs {
		if m["type"] == "frame" {
			frames++
		}
	}
	if frames != 1 {
		t.Errorf("frames sent = %d, want 1", frames)
	}
}

// TestKeepaliveSent verifies keep-alive comments when no frame is due.
func TestKeepaliveSent(t *testing.T) {
	handler := NewHandler(&fakeSource{}, Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  20 * time.Millisecond,
	}, testLogger())

	w := runSSE(t, handler, "?fps=1", 200*time.Millisecond)

	if !strings.Contains(w.Body.String(), "\n:\n\n") {
		t.Errorf("body has no keepalive comment: %q", w.Body.String())
	}
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	// Acquire up to the limit.
	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}

	// 4th should fail.
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}

	// Different IP should still work.
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	// Release one and try again.
	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
	if c := limiter.totalCount(); c != 4 {
		t.Errorf("totalCount = %d, want 4", c)
	}
}

// TestRateLimitingGlobal verifies the limit across all IPs.
func TestRateLimitingGlobal(t *testing.T) {
	limiter := newStreamLimiter(10, 2)

	if !limiter.acquire("10.0.0.1") || !limiter.acquire("10.0.0.2") {
		t.Fatal("acquire under global limit should succeed")
	}
	if limiter.acquire("10.0.0.3") {
		t.Error("acquire beyond global limit should fail")
	}

	// Releasing an IP with no connections must not free a slot.
	limiter.release("10.0.0.9")
	if limiter.acquire("10.0.0.3") {
		t.Error("spurious release freed a slot")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.3") {
		t.Error("acquire after release should succeed")
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when limit exceeded.
func TestRateLimitHTTPResponse(t *testing.T) {
	handler := NewHandler(&fakeSource{}, Config{
		MaxConcurrentPerIP: 1,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())

	// Hold the first connection open.
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			// Signal ready after short delay to allow acquire.
			time.Sleep(50 * time.Millisecond)
			close(ready)
			// Hold connection for a bit.
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleFrames(w, req)
	}()

	<-ready

	// Second connection from same IP should get 429.
	req := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandleFrames(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done

	if n := handler.Active(); n != 0 {
		t.Errorf("Active() after disconnect = %d, want 0", n)
	}
}

// TestInvalidQueryParams verifies error responses for bad fps values.
func TestInvalidQueryParams(t *testing.T) {
	handler := NewHandler(&fakeSource{}, testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"zero fps", "?fps=0"},
		{"fps too large", "?fps=61"},
		{"negative fps", "?fps=-5"},
		{"fps non-numeric", "?fps=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/frames"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandleFrames(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if n := handler.Active(); n != 0 {
				t.Errorf("rejected request holds %d slots", n)
			}
		})
	}
}

// TestClientIP verifies IP extraction from RemoteAddr and proxy headers.
func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		xff        string
		want       string
	}{
		{"ipv4", false, "192.168.1.1:12345", "", "192.168.1.1"},
		{"ipv6", false, "[::1]:12345", "", "::1"},
		{"no port", false, "192.168.1.1", "", "192.168.1.1"},
		{"xff ignored", false, "192.168.1.1:12345", "203.0.113.7", "192.168.1.1"},
		{"xff trusted", true, "192.168.1.1:12345", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeSource{}, Config{TrustProxy: tt.trustProxy}, testLogger())
			r := &http.Request{RemoteAddr: tt.remoteAddr, Header: http.Header{}}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := h.clientIP(r); got != tt.want {
				t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{FPS: 500}.withDefaults()
	if c.FPS != 10 {
		t.Errorf("FPS = %d, want 10", c.FPS)
	}
	if c.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 30s", c.KeepaliveInterval)
	}
}
