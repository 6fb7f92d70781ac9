// Package retention holds the bounded, broadcaster-owned buffers that let
// newly-connected clients and query endpoints see recent history: a
// recent-events ring shared across all families, a per-thread event
// buffer, and an exportable-events vector capped at 10^4 entries.
//
// Every method here is called only from the broadcaster's single event
// tick goroutine (per the single-writer policy in spec §5), except Recent,
// ThreadEvents and ExportSnapshot which are read concurrently by HTTP
// handlers and newly-upgraded WebSocket clients — those take a read lock.
package retention

import (
	"sync"

	"argus/internal/event"
)

const defaultPerThreadCap = 100

// Record pairs a raw event with its serialized JSON, since retention
// stores JSON (for WS replay) while per-thread lookups need the typed
// event too (for filtering/formatting in HTTP handlers).
type Record struct {
	Event event.Event
	JSON  []byte
}

// Store is the broadcaster's retention state.
type Store struct {
	mu sync.RWMutex

	recentCap int
	recent    []Record // ring semantics via slice trimming; single writer

	perThreadCap      int
	totalThreadCap     int
	perThread          map[uint64][]Record
	totalThreadEntries int

	exportCap int
	export    []Record
}

// NewStore constructs a Store. recentCap and exportCap fall back to
// defaults when zero (10^3 and 10^4 respectively); totalThreadCap bounds
// the sum of all per-thread buffers (50000 when zero); past it, Append
// evicts the oldest entry of the largest per-thread buffer.
func NewStore(recentCap, exportCap, totalThreadCap int) *Store {
	if recentCap <= 0 {
		recentCap = 1000
	}
	if exportCap <= 0 {
		exportCap = 10000
	}
	if totalThreadCap <= 0 {
		totalThreadCap = 50000
	}
	return &Store{
		recentCap:      recentCap,
		perThreadCap:   defaultPerThreadCap,
		totalThreadCap: totalThreadCap,
		perThread:      make(map[uint64][]Record),
		exportCap:      exportCap,
	}
}

// Append records e (with its JSON encoding) into the recent-events ring,
// the exportable vector, and — when hasThread is true (a lifecycle or
// per-thread-attributable event) — the per-thread buffer for threadID.
func (s *Store) Append(r Record, threadID uint64, hasThread bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, r)
	if len(s.recent) > s.recentCap {
		s.recent = s.recent[len(s.recent)-s.recentCap:]
	}

	if len(s.export) >= s.exportCap {
		s.export = s.export[1:]
	}
	s.export = append(s.export, r)

	if hasThread {
		buf := s.perThread[threadID]
		buf = append(buf, r)
		if len(buf) > s.perThreadCap {
			dropped := len(buf) - s.perThreadCap
			buf = buf[dropped:]
			s.totalThreadEntries -= dropped
		}
		s.perThread[threadID] = buf
		s.totalThreadEntries++

		// Global cap: when the sum across all threads is too large, evict
		// from the largest existing buffer to bound worst-case memory
		// without a proportional per-thread cost accounting scheme.
		for s.totalThreadEntries > s.totalThreadCap {
			s.evictFromLargest()
		}
	}
}

// evictFromLargest must be called with mu held.
func (s *Store) evictFromLargest() {
	var largestID uint64
	largestLen := -1
	for id, buf := range s.perThread {
		if len(buf) > largestLen {
			largestLen = len(buf)
			largestID = id
		}
	}
	if largestLen <= 0 {
		return
	}
	buf := s.perThread[largestID]
	s.perThread[largestID] = buf[1:]
	s.totalThreadEntries--
}

// Recent returns a snapshot copy of the current recent-events ring,
// oldest first.
func (s *Store) Recent() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.recent))
	copy(out, s.recent)
	return out
}

// ThreadEvents returns a snapshot copy of the retained events for one
// thread, oldest first.
func (s *Store) ThreadEvents(threadID uint64) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := s.perThread[threadID]
	out := make([]Record, len(buf))
	copy(out, buf)
	return out
}

// ExportSnapshot returns a snapshot copy of the exportable-events vector.
func (s *Store) ExportSnapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.export))
	copy(out, s.export)
	return out
}
