// Package swarm owns the set of tracked satellites: which ones to track,
// their staggered start, per-frame update and teardown.
package swarm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/catalog"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/metrics"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/sat"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/selection"
)

// Config sizes the swarm.
type Config struct {
	SampleSize   int
	PollInterval time.Duration
	PollJitter   time.Duration
	StartSpread  time.Duration
	Entity       sat.Config
}

// DefaultConfig returns the stock swarm settings.
func DefaultConfig() Config {
	return Config{
		SampleSize:   400,
		PollInterval: 3 * time.Second,
		PollJitter:   time.Second,
		StartSpread:  2 * time.Second,
		Entity:       sat.DefaultConfig(),
	}
}

// PoolLoader supplies the identifier pool.
type PoolLoader interface {
	Load(ctx context.Context) *catalog.Pool
}

var (
	ErrPopulated = errors.New("swarm already populated")
	ErrClosed    = errors.New("swarm closed")
)

// Coordinator owns the entities.
type Coordinator struct {
	cfg       Config
	pools     PoolLoader
	store     *catalog.Store
	deps      sat.Deps
	logger    *slog.Logger
	onDispose func(id int)

	mu        sync.Mutex
	rng       *rand.Rand
	entities  map[int]*sat.Entity
	order     []int
	timers    []*time.Timer
	populated bool
	closed    bool

	ready atomic.Bool
}

// New creates an empty coordinator. store records the pool that was sampled
// and may be nil.
func New(cfg Config, pools PoolLoader, store *catalog.Store, deps sat.Deps, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		pools:    pools,
		store:    store,
		deps:     deps,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		entities: make(map[int]*sat.Entity),
	}
}

// OnDispose registers fn to run with each catalog number just before its
// entity is disposed.
func (c *Coordinator) OnDispose(fn func(id int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDispose = fn
}

// Seed replaces the random source. Use before Populate for reproducible runs.
func (c *Coordinator) Seed(seed1, seed2 uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = rand.New(rand.NewPCG(seed1, seed2))
}

// Populate loads the pool, samples it and creates one entity per sampled id,
// each with its own jittered poll interval and start delay.
func (c *Coordinator) Populate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.populated {
		c.mu.Unlock()
		return ErrPopulated
	}
	c.populated = true
	c.mu.Unlock()

	pool := c.pools.Load(ctx)
	if c.store != nil {
		c.store.Set(pool)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	ids := catalog.Sample(c.rng, pool.IDs, c.cfg.SampleSize)
	for _, id := range ids {
		ecfg := c.cfg.Entity
		ecfg.PollInterval = c.cfg.PollInterval + c.jitter(c.cfg.PollJitter)

		e := sat.New(id, ecfg, c.deps)
		c.entities[id] = e
		c.order = append(c.order, id)
		c.timers = append(c.timers, time.AfterFunc(c.jitter(c.cfg.StartSpread), e.Start))
	}
	metrics.AddActiveEntities(len(ids))
	c.ready.Store(true)

	c.logger.Info("swarm populated",
		"pool_size", len(pool.IDs),
		"pool_source", string(pool.Source),
		"entities", len(ids),
	)
	return nil
}

// jitter returns a uniform duration in [0, limit).
func (c *Coordinator) jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(c.rng.Int64N(int64(limit)))
}

// Ready reports whether Populate has completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// Update advances every entity by dt seconds. Call it from the frame loop.
func (c *Coordinator) Update(dt float64) {
	for _, e := range c.snapshot() {
		e.Update(dt)
	}
}

func (c *Coordinator) snapshot() []*sat.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*sat.Entity, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entities[id])
	}
	return out
}

// Lookup returns the live entity for id.
func (c *Coordinator) Lookup(id int) (*sat.Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entities[id]
	return e, ok
}

// Target is Lookup typed for the selection controller.
func (c *Coordinator) Target(id int) (selection.Target, bool) {
	e, ok := c.Lookup(id)
	if !ok {
		return nil, false
	}
	return e, true
}

// IDs returns the tracked catalog numbers in creation order.
func (c *Coordinator) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.order...)
}

// Len returns the number of live entities.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}

// Close cancels pending start timers and disposes every entity exactly once.
// Later calls do nothing.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.ready.Store(false)
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	entities := c.entities
	c.entities = make(map[int]*sat.Entity)
	c.order = nil
	onDispose := c.onDispose
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(32)
	for id, e := range entities {
		if onDispose != nil {
			onDispose(id)
		}
		g.Go(func() error {
			e.Dispose()
			return nil
		})
	}
	g.Wait()

	metrics.AddActiveEntities(-len(entities))
	c.logger.Info("swarm closed", "entities", len(entities))
}
