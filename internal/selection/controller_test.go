package selection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/picking"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi/satapitest"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/scene"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

// recorder logs every call made on fake targets in order.
type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, s)
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeTarget struct {
	id       int
	rec      *recorder
	hovered  bool
	selected bool
	orbit    bool
}

func (f *fakeTarget) SetHover(on bool) {
	f.hovered = on
	f.rec.add(fmt.Sprintf("%d hover %v", f.id, on))
}

func (f *fakeTarget) SetSelected(on bool) {
	f.selected = on
	f.rec.add(fmt.Sprintf("%d selected %v", f.id, on))
}

func (f *fakeTarget) ShowOrbit() {
	f.orbit = true
	f.rec.add(fmt.Sprintf("%d show orbit", f.id))
}

func (f *fakeTarget) HideOrbit() {
	f.orbit = false
	f.rec.add(fmt.Sprintf("%d hide orbit", f.id))
}

// fixedPicker returns whatever id it currently holds; 0 is a miss.
type fixedPicker struct{ id int }

func (p *fixedPicker) Resolve(picking.PointerEvent, picking.Rect, scene.Camera) (int, bool) {
	return p.id, p.id != 0
}

type harness struct {
	ctrl    *Controller
	picker  *fixedPicker
	targets map[int]*fakeTarget
	rec     *recorder
	srv     *satapitest.Server
}

func newHarness(t *testing.T, ids ...int) *harness {
	t.Helper()
	h := &harness{picker: &fixedPicker{}, targets: map[int]*fakeTarget{}, rec: &recorder{}}
	h.srv = satapitest.NewServer()
	t.Cleanup(h.srv.Close)
	for _, id := range ids {
		h.targets[id] = &fakeTarget{id: id, rec: h.rec}
		h.srv.SetSummary(id, satapi.Summary{Name: fmt.Sprintf("SAT-%d", id), NORADID: id}, 0)
	}
	lookup := func(id int) (Target, bool) {
		tg, ok := h.targets[id]
		if !ok {
			return nil, false
		}
		return tg, true
	}
	h.ctrl = NewController(lookup, h.picker, satapi.NewClient(h.srv.URL, testLogger), nil, testLogger)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) click(id int) {
	h.picker.id = id
	h.ctrl.Click(picking.PointerEvent{}, picking.Rect{}, scene.Camera{})
}

func (h *harness) move(id int) {
	h.picker.id = id
	h.ctrl.PointerMove(picking.PointerEvent{}, picking.Rect{}, scene.Camera{})
}

func (h *harness) selectedCount() int {
	n := 0
	for _, tg := range h.targets {
		if tg.selected {
			n++
		}
	}
	return n
}

func TestHoverEnterLeave(t *testing.T) {
	h := newHarness(t, 1, 2)

	h.move(1)
	assert.True(t, h.targets[1].hovered)
	assert.Equal(t, 1, h.ctrl.Hovered())

	h.move(2)
	assert.False(t, h.targets[1].hovered)
	assert.True(t, h.targets[2].hovered)

	h.move(0)
	assert.False(t, h.targets[2].hovered)
	assert.Zero(t, h.ctrl.Hovered())

	h.move(99)
	assert.Zero(t, h.ctrl.Hovered(), "unknown id is not hovered")
}

func TestSelectionIsExclusive(t *testing.T) {
	h := newHarness(t, 25544, 43013, 48274)

	for _, id := range []int{25544, 43013, 48274, 43013, 25544} {
		h.click(id)
		assert.LessOrEqual(t, h.selectedCount(), 1)
	}
	assert.Equal(t, 25544, h.ctrl.Selected())
	assert.True(t, h.targets[25544].selected)
}

func TestSwitchDeselectsOldFirst(t *testing.T) {
	h := newHarness(t, 1, 2)

	h.click(1)
	h.click(2)

	assert.Equal(t, []string{
		"1 selected true",
		"1 show orbit",
		"1 selected false",
		"1 hide orbit",
		"2 selected true",
		"2 show orbit",
	}, h.rec.calls())
	assert.False(t, h.targets[1].orbit)
	assert.True(t, h.targets[2].orbit)
}

func TestToggleAndMiss(t *testing.T) {
	h := newHarness(t, 1)

	h.click(1)
	h.click(0)
	assert.Equal(t, 1, h.ctrl.Selected(), "click on empty space keeps selection")

	h.click(1)
	assert.Zero(t, h.ctrl.Selected())
	assert.False(t, h.targets[1].selected)
	assert.False(t, h.targets[1].orbit)
	assert.Equal(t, StatusHidden, h.ctrl.Card().Status)
}

func TestCardLoadsSummary(t *testing.T) {
	h := newHarness(t, 25544)

	h.click(25544)
	require.Eventually(t, func() bool { return h.ctrl.Card().Status == StatusReady }, 2*time.Second, 5*time.Millisecond)

	card := h.ctrl.Card()
	assert.Equal(t, 25544, card.NORADID)
	require.NotNil(t, card.Summary)
	assert.Equal(t, "SAT-25544", card.Summary.Name)
}

func TestCardShowsLoadingThenError(t *testing.T) {
	h := newHarness(t, 5)
	h.srv.SetSummary(5, satapi.Summary{}, 100*time.Millisecond)
	h.srv.FailSummary(5, "no TLE for 5")

	h.click(5)
	assert.Equal(t, StatusLoading, h.ctrl.Card().Status)

	require.Eventually(t, func() bool { return h.ctrl.Card().Status == StatusError }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "no TLE for 5", h.ctrl.Card().Error)
}

func TestStaleSummaryIsCancelled(t *testing.T) {
	h := newHarness(t, 1, 2)
	h.srv.SetSummary(1, satapi.Summary{Name: "SLOW"}, 3*time.Second)

	h.click(1)
	require.Eventually(t, func() bool { return h.srv.SummaryCalls() == 1 }, time.Second, time.Millisecond)
	h.click(2)

	require.Eventually(t, func() bool { return h.ctrl.Card().Status == StatusReady }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, h.ctrl.Card().NORADID)

	time.Sleep(50 * time.Millisecond)
	card := h.ctrl.Card()
	assert.Equal(t, "SAT-2", card.Summary.Name, "late result for 1 never shows")
}

// lateFetcher ignores cancellation and answers after release closes.
type lateFetcher struct {
	release chan struct{}
	started chan int
}

func (l *lateFetcher) Summary(ctx context.Context, id int) (satapi.Summary, error) {
	l.started <- id
	if id == 1 {
		<-l.release
	}
	return satapi.Summary{Name: fmt.Sprintf("SAT-%d", id)}, nil
}

func TestLateSummaryIsFenced(t *testing.T) {
	targets := map[int]*fakeTarget{1: {id: 1, rec: &recorder{}}, 2: {id: 2, rec: &recorder{}}}
	lookup := func(id int) (Target, bool) { tg, ok := targets[id]; return tg, ok }
	f := &lateFetcher{release: make(chan struct{}), started: make(chan int, 2)}
	ctrl := NewController(lookup, &fixedPicker{}, f, nil, testLogger)
	defer ctrl.Close()

	ctrl.Select(1)
	<-f.started
	ctrl.Select(2)
	<-f.started
	require.Eventually(t, func() bool { return ctrl.Card().Status == StatusReady }, time.Second, time.Millisecond)

	close(f.release)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "SAT-2", ctrl.Card().Summary.Name)
}

func TestDeselectAndForget(t *testing.T) {
	h := newHarness(t, 1, 2)

	h.ctrl.Deselect()
	assert.Empty(t, h.rec.calls(), "deselect with nothing selected")

	h.click(1)
	h.ctrl.Deselect()
	assert.Zero(t, h.ctrl.Selected())
	assert.False(t, h.targets[1].orbit)

	h.move(2)
	h.click(2)
	before := len(h.rec.calls())
	h.ctrl.Forget(2)
	assert.Zero(t, h.ctrl.Selected())
	assert.Zero(t, h.ctrl.Hovered())
	assert.Len(t, h.rec.calls(), before, "forget does not call the target")
	assert.Equal(t, StatusHidden, h.ctrl.Card().Status)
}
