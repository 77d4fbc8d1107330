// Package satapitest provides an in-process fake of the remote satellite
// service for tests.
package satapitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/httputil"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
)

// Server is a fake remote service. Its fields may be changed while it runs
// through the setter methods.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	ids          []int
	idsStatus    int
	states       map[int]satapi.State
	stateStatus  int
	tracks       map[int][][2]float64
	trackStatus  int
	summaries    map[int]satapi.Summary
	summaryDelay map[int]time.Duration
	summaryFail  map[int]string

	stateCalls   map[int]*atomic.Int64
	summaryCalls atomic.Int64
	lastStep     atomic.Int64
}

// NewServer starts a fake with no satellites. Close it when done.
func NewServer() *Server {
	s := &Server{
		states:       make(map[int]satapi.State),
		tracks:       make(map[int][][2]float64),
		summaries:    make(map[int]satapi.Summary),
		summaryDelay: make(map[int]time.Duration),
		summaryFail:  make(map[int]string),
		stateCalls:   make(map[int]*atomic.Int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/debug/sat-ids", s.handleIDs)
	mux.HandleFunc("GET /api/satellites/{id}/state", s.handleState)
	mux.HandleFunc("GET /api/satellites/{id}/groundtrack", s.handleTrack)
	mux.HandleFunc("GET /api/satellites/{id}/summary", s.handleSummary)
	s.Server = httptest.NewServer(mux)
	return s
}

// SetIDs sets the identifier pool.
func (s *Server) SetIDs(ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append([]int(nil), ids...)
}

// FailIDs makes the identifier endpoint answer with status code; 0 restores it.
func (s *Server) FailIDs(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idsStatus = code
}

// SetState sets the position reported for id.
func (s *Server) SetState(id int, st satapi.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id] = st
}

// FailStates makes every state request answer with code; 0 restores them.
func (s *Server) FailStates(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateStatus = code
}

// SetTrack sets the ground track for id.
func (s *Server) SetTrack(id int, points [][2]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks[id] = points
}

// FailTracks makes every ground track request answer with code; 0 restores them.
func (s *Server) FailTracks(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackStatus = code
}

// SetSummary sets the summary for id, answered after delay.
func (s *Server) SetSummary(id int, sum satapi.Summary, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[id] = sum
	s.summaryDelay[id] = delay
}

// FailSummary makes the summary for id answer 500 with text.
func (s *Server) FailSummary(id int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryFail[id] = text
}

// StateCalls returns the number of state requests received for id.
func (s *Server) StateCalls(id int) int64 {
	return s.stateCounter(id).Load()
}

// SummaryCalls returns the number of summary requests received.
func (s *Server) SummaryCalls() int64 {
	return s.summaryCalls.Load()
}

// LastStep returns the step_s of the most recent ground track request.
func (s *Server) LastStep() int64 {
	return s.lastStep.Load()
}

func (s *Server) stateCounter(id int) *atomic.Int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.stateCalls[id]
	if !ok {
		c = new(atomic.Int64)
		s.stateCalls[id] = c
	}
	return c
}

func (s *Server) handleIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	code, ids := s.idsStatus, append([]int(nil), s.ids...)
	s.mu.Unlock()

	if code != 0 {
		http.Error(w, "ids unavailable", code)
		return
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	httputil.WriteJSON(w, http.StatusOK, ids)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.stateCounter(id).Add(1)

	s.mu.Lock()
	code := s.stateStatus
	st, found := s.states[id]
	s.mu.Unlock()

	switch {
	case code != 0:
		http.Error(w, "state unavailable", code)
	case !found:
		http.Error(w, "unknown satellite", http.StatusNotFound)
	default:
		httputil.WriteJSON(w, http.StatusOK, st)
	}
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if step, err := strconv.ParseInt(r.URL.Query().Get("step_s"), 10, 64); err == nil {
		s.lastStep.Store(step)
	}

	s.mu.Lock()
	code := s.trackStatus
	pts, found := s.tracks[id]
	s.mu.Unlock()

	switch {
	case code != 0:
		http.Error(w, "track unavailable", code)
	case !found:
		http.Error(w, "unknown satellite", http.StatusNotFound)
	default:
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"points": pts})
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.summaryCalls.Add(1)

	s.mu.Lock()
	sum, found := s.summaries[id]
	delay := s.summaryDelay[id]
	failText, fail := s.summaryFail[id]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case fail:
		http.Error(w, failText, http.StatusInternalServerError)
	case !found:
		http.Error(w, "unknown satellite", http.StatusNotFound)
	default:
		httputil.WriteJSON(w, http.StatusOK, sum)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id %q", r.PathValue("id")), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
