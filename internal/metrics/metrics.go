package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satglobe_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_polls_total",
			Help: "Position polls by outcome (ok, error, cancelled).",
		},
		[]string{"outcome"},
	)

	pollDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satglobe_poll_duration_seconds",
			Help:    "Latency of position polls against the remote service.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	activeEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satglobe_active_entities",
			Help: "Number of live satellite entities.",
		},
	)

	frameDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satglobe_frame_duration_seconds",
			Help:    "Wall time spent in one frame callback.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
		},
	)

	taskQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satglobe_task_queue_depth",
			Help: "Tasks posted to the frame loop and not yet run.",
		},
	)

	orbitLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_orbit_loads_total",
			Help: "Orbit track loads by outcome (loaded, error, cancelled, stale).",
		},
		[]string{"outcome"},
	)

	summaryFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_summary_fetches_total",
			Help: "Summary card fetches by outcome (ok, error, cancelled).",
		},
		[]string{"outcome"},
	)

	streamConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satglobe_stream_connections",
			Help: "Open viewer stream connections.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_stream_messages_total",
			Help: "Messages written to viewer streams.",
		},
		[]string{"transport", "type"},
	)

	streamBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_stream_bytes_total",
			Help: "Bytes written to viewer streams.",
		},
		[]string{"transport"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satglobe_stream_errors_total",
			Help: "Viewer stream errors by reason.",
		},
		[]string{"transport", "reason"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollDurationSeconds)
	prometheus.MustRegister(activeEntities)
	prometheus.MustRegister(frameDurationSeconds)
	prometheus.MustRegister(taskQueueDepth)
	prometheus.MustRegister(orbitLoadsTotal)
	prometheus.MustRegister(summaryFetchesTotal)
	prometheus.MustRegister(streamConnections)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
	prometheus.MustRegister(streamErrorsTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePoll records one position poll.
func ObservePoll(outcome string, d time.Duration) {
	pollsTotal.WithLabelValues(outcome).Inc()
	pollDurationSeconds.Observe(d.Seconds())
}

// AddActiveEntities adjusts the live entity gauge.
func AddActiveEntities(delta int) {
	activeEntities.Add(float64(delta))
}

// ObserveFrame records the wall time of one frame.
func ObserveFrame(d time.Duration) {
	frameDurationSeconds.Observe(d.Seconds())
}

// SetTaskQueueDepth sets the frame loop's pending task count.
func SetTaskQueueDepth(n int) {
	taskQueueDepth.Set(float64(n))
}

// IncOrbitLoad counts one orbit load outcome.
func IncOrbitLoad(outcome string) {
	orbitLoadsTotal.WithLabelValues(outcome).Inc()
}

// IncSummaryFetch counts one summary fetch outcome.
func IncSummaryFetch(outcome string) {
	summaryFetchesTotal.WithLabelValues(outcome).Inc()
}

// StreamOpened and StreamClosed track open connections per transport.
func StreamOpened(transport string) {
	streamConnections.WithLabelValues(transport).Inc()
}

func StreamClosed(transport string) {
	streamConnections.WithLabelValues(transport).Dec()
}

// StreamWrote records one message of n bytes.
func StreamWrote(transport, msgType string, n int) {
	streamMessagesTotal.WithLabelValues(transport, msgType).Inc()
	streamBytesTotal.WithLabelValues(transport).Add(float64(n))
}

// IncStreamError counts a stream failure.
func IncStreamError(transport, reason string) {
	streamErrorsTotal.WithLabelValues(transport, reason).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers behind the middleware can stream.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/scene":         true,
	"/api/v1/selection":     true,
	"/api/v1/pointer":       true,
	"/api/v1/stream/frames": true,
	"/api/v1/ws":            true,
}

const satellitePrefix = "/api/v1/satellites/"

// normalizeRoute maps a request path to a bounded label set so that catalog
// numbers and scanner noise do not create new series.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, satellitePrefix); ok && rest != "" {
		if _, err := strconv.Atoi(rest); err == nil {
			return satellitePrefix + "{norad_id}"
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
