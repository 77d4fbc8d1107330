// Package selection owns the global hover and selection state and the
// detail card of the selected satellite.
package selection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/picking"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

// Target is the per-satellite side of selection.
type Target interface {
	SetHover(on bool)
	SetSelected(on bool)
	ShowOrbit()
	HideOrbit()
}

// LookupFunc resolves a catalog number to a live target.
type LookupFunc func(id int) (Target, bool)

// Picker resolves a pointer position to a catalog number.
type Picker interface {
	Resolve(ev picking.PointerEvent, rect picking.Rect, cam scene.Camera) (int, bool)
}

// SummaryFetcher fetches detail card data.
type SummaryFetcher interface {
	Summary(ctx context.Context, id int) (satapi.Summary, error)
}

// Status is the detail card state.
type Status string

const (
	StatusHidden  Status = "hidden"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Card is what the detail card shows.
type Card struct {
	Status  Status          `json:"status"`
	NORADID int             `json:"norad_id,omitempty"`
	Summary *satapi.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Controller is the selection context. Pointer and selection methods are
// meant to run on the frame loop; the read accessors are safe anywhere.
type Controller struct {
	lookup    LookupFunc
	picker    Picker
	summaries SummaryFetcher
	post      func(func()) bool
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	hovered       int
	selected      int
	card          Card
	summaryCancel context.CancelFunc
	summaryGen    uint64
}

// NewController wires a controller. post hands summary results back to the
// frame loop; nil applies them on the fetching goroutine.
func NewController(lookup LookupFunc, picker Picker, summaries SummaryFetcher, post func(func()) bool, logger *slog.Logger) *Controller {
	if post == nil {
		post = func(f func()) bool { f(); return true }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		lookup:    lookup,
		picker:    picker,
		summaries: summaries,
		post:      post,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		card:      Card{Status: StatusHidden},
	}
}

// PointerMove updates hover from a pointer position.
func (c *Controller) PointerMove(ev picking.PointerEvent, rect picking.Rect, cam scene.Camera) {
	id, ok := c.picker.Resolve(ev, rect, cam)
	if !ok {
		id = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id == c.hovered {
		return
	}
	if t, ok := c.target(c.hovered); ok {
		t.SetHover(false)
	}
	c.hovered = 0
	if t, ok := c.target(id); ok {
		t.SetHover(true)
		c.hovered = id
	}
}

// Click selects the satellite under the pointer, or toggles it off if it is
// already selected. A click on empty space changes nothing.
func (c *Controller) Click(ev picking.PointerEvent, rect picking.Rect, cam scene.Camera) {
	id, ok := c.picker.Resolve(ev, rect, cam)
	if !ok {
		return
	}
	c.Select(id)
}

// Select makes id the selected satellite, deselecting the previous one first.
// Selecting the current selection deselects it.
func (c *Controller) Select(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == c.selected {
		c.deselectLocked()
		return
	}
	t, ok := c.target(id)
	if !ok {
		return
	}

	c.deselectLocked()

	c.selected = id
	t.SetSelected(true)
	t.ShowOrbit()
	c.startSummaryLocked(id)
	c.logger.Debug("satellite selected", "norad_id", id)
}

// Deselect clears the selection. It is a no-op with nothing selected.
func (c *Controller) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deselectLocked()
}

func (c *Controller) deselectLocked() {
	if c.selected == 0 {
		return
	}
	if t, ok := c.target(c.selected); ok {
		t.SetSelected(false)
		t.HideOrbit()
	}
	c.stopSummaryLocked()
	c.card = Card{Status: StatusHidden}
	c.selected = 0
}

// Forget drops any state held for id without calling back into it. Call it
// when the satellite is being disposed.
func (c *Controller) Forget(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovered == id {
		c.hovered = 0
	}
	if c.selected == id {
		c.stopSummaryLocked()
		c.card = Card{Status: StatusHidden}
		c.selected = 0
	}
}

// Close cancels any summary fetch in flight.
func (c *Controller) Close() {
	c.cancel()
}

// Hovered returns the hovered catalog number, 0 if none.
func (c *Controller) Hovered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Selected returns the selected catalog number, 0 if none.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Card returns a copy of the detail card.
func (c *Controller) Card() Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	card := c.card
	if card.Summary != nil {
		s := *card.Summary
		card.Summary = &s
	}
	return card
}

func (c *Controller) target(id int) (Target, bool) {
	if id == 0 {
		return nil, false
	}
	return c.lookup(id)
}

func (c *Controller) startSummaryLocked(id int) {
	c.stopSummaryLocked()
	ctx, cancel := context.WithCancel(c.ctx)
	c.summaryCancel = cancel
	gen := c.summaryGen
	c.card = Card{Status: StatusLoading, NORADID: id}

	go func() {
		defer cancel()
		sum, err := c.summaries.Summary(ctx, id)
		if !c.post(func() { c.finishSummary(gen, id, sum, err) }) {
			metrics.IncSummaryFetch("cancelled")
		}
	}()
}

// stopSummaryLocked cancels the fetch in flight and invalidates its result.
func (c *Controller) stopSummaryLocked() {
	c.summaryGen++
	if c.summaryCancel != nil {
		c.summaryCancel()
		c.summaryCancel = nil
	}
}

func (c *Controller) finishSummary(gen uint64, id int, sum satapi.Summary, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.summaryGen || c.selected != id {
		metrics.IncSummaryFetch("cancelled")
		return
	}
	switch {
	case errors.Is(err, context.Canceled):
		metrics.IncSummaryFetch("cancelled")
	case err != nil:
		metrics.IncSummaryFetch("error")
		c.logger.Warn("summary fetch failed", "norad_id", id, "error", err)
		c.card = Card{Status: StatusError, NORADID: id, Error: errorText(err)}
	default:
		metrics.IncSummaryFetch("ok")
		c.card = Card{Status: StatusReady, NORADID: id, Summary: &sum}
	}
}

// errorText prefers the service's own message over the wrapped chain.
func errorText(err error) string {
	var se *satapi.StatusError
	if errors.As(err, &se) && se.Body != "" {
		return se.Body
	}
	return err.Error()
}
