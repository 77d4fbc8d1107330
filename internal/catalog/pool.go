// Package catalog holds the pool of satellite catalog numbers the swarm
// samples from.
package catalog

import (
	"sync/atomic"
	"time"
)

// Source records where a pool came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// FallbackIDs is the pool used when neither the service nor the disk cache
// can supply one.
var FallbackIDs = []int{25544}

// Pool is an ordered list of catalog numbers.
type Pool struct {
	IDs       []int
	Source    Source
	FetchedAt time.Time
}

// Store provides thread-safe access to the current pool.
type Store struct {
	pool atomic.Pointer[Pool]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current pool, or nil if none has been loaded.
func (s *Store) Get() *Pool {
	return s.pool.Load()
}

// Set atomically replaces the current pool.
func (s *Store) Set(p *Pool) {
	s.pool.Store(p)
}

// AgeSeconds returns the age of the current pool in seconds, or -1 if none is
// loaded.
func (s *Store) AgeSeconds() float64 {
	p := s.pool.Load()
	if p == nil {
		return -1
	}
	return time.Since(p.FetchedAt).Seconds()
}
