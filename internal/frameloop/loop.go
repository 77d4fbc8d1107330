// Package frameloop runs the single goroutine that owns interactive scene
// state. Other goroutines hand it work with Post; once per frame it runs the
// posted tasks in order and then the registered frame callbacks.
package frameloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
)

const defaultFPS = 60

// Loop is a fixed-rate frame loop with a task queue.
type Loop struct {
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	tasks    []func()
	stopped  bool
	onFrame  []func(dt float64)
	frames   atomic.Uint64
}

// New returns a loop ticking fps times per second. Non-positive fps uses 60.
func New(fps int, logger *slog.Logger) *Loop {
	if fps <= 0 {
		fps = defaultFPS
	}
	return &Loop{
		interval: time.Second / time.Duration(fps),
		logger:   logger,
	}
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// OnFrame registers fn to run every frame with the elapsed seconds since the
// previous frame. Register callbacks before Run.
func (l *Loop) OnFrame(fn func(dt float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFrame = append(l.onFrame, fn)
}

// Post queues task for the start of the next frame. It reports false, and
// drops the task, once the loop has stopped.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.tasks = append(l.tasks, task)
	metrics.SetTaskQueueDepth(len(l.tasks))
	return true
}

// Step runs one frame: queued tasks in FIFO order, then the frame callbacks.
// Tasks posted while the frame runs wait for the next frame. Run calls Step;
// tests may call it directly instead of running the loop.
func (l *Loop) Step(dt float64) {
	start := time.Now()

	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	callbacks := l.onFrame
	l.mu.Unlock()
	metrics.SetTaskQueueDepth(0)

	for _, task := range tasks {
		task()
	}
	for _, fn := range callbacks {
		fn(dt)
	}

	l.frames.Add(1)
	metrics.ObserveFrame(time.Since(start))
}

// Frames returns the number of completed frames.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

// Run ticks until ctx is cancelled. Queued tasks are dropped on exit and later
// Posts are rejected.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("frame loop started", "interval_ms", l.interval.Milliseconds())
	defer l.stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("frame loop stopped", "frames", l.Frames())
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			l.Step(dt)
		}
	}
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.tasks = nil
	metrics.SetTaskQueueDepth(0)
}
