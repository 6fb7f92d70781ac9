// Package threadstate mirrors the lifecycle of every observed virtual
// thread as a small state machine (RUNNING, PINNED, ENDED) and detects
// changes for the broadcaster's state tick.
package threadstate

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"argus/internal/event"
)

// State is a virtual thread's logical lifecycle state.
type State uint8

const (
	Running State = iota
	Pinned
	Ended
)

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Pinned:
		return "PINNED"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Entry is a point-in-time copy of one thread's tracked state.
type Entry struct {
	ThreadID   uint64
	ThreadName string
	CarrierID  int64 // event.UnknownCarrier if unresolved
	State      State
	IsPinned   bool
	StartTime  time.Time
	EndTime    time.Time // zero if not ENDED
}

type entry struct {
	Entry
}

// Manager tracks every observed virtual thread's lifecycle state.
//
// All reads and mutations (Start/MarkPinned/End/Cleanup/Snapshot) take the
// single mutex. version/lastObservedVer are the only fields read outside
// that lock, so HasStateChanged can be polled without contending with a
// Snapshot in progress.
type Manager struct {
	mu               sync.Mutex
	entries          map[uint64]*entry
	visibilityWindow time.Duration
	version          atomic.Uint64
	lastObservedVer  atomic.Uint64
}

// NewManager constructs a Manager with the given ENDED-entry visibility
// window (how long an ended thread remains in snapshots before cleanup
// removes it). A zero window defaults to 3 seconds per spec.
func NewManager(visibilityWindow time.Duration) *Manager {
	if visibilityWindow <= 0 {
		visibilityWindow = 3 * time.Second
	}
	return &Manager{
		entries:          make(map[uint64]*entry),
		visibilityWindow: visibilityWindow,
	}
}

// Start records a new RUNNING thread, replacing any prior ENDED entry for
// the same id.
func (m *Manager) Start(id uint64, name string, carrier int64, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{
		Entry: Entry{
			ThreadID:   id,
			ThreadName: name,
			CarrierID:  carrier,
			State:      Running,
			StartTime:  t,
		},
	}
	m.entries[id] = e
	m.bump()
}

// MarkPinned transitions a present entry to PINNED. If the entry is
// absent (its Start was lost), the observation is dropped.
func (m *Manager) MarkPinned(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.State = Pinned
	e.IsPinned = true
	m.bump()
}

// End transitions a present entry to ENDED with the given end time.
func (m *Manager) End(id uint64, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.State = Ended
	e.EndTime = t
	m.bump()
}

// Cleanup removes ENDED entries whose end time is older than the
// visibility window relative to now.
func (m *Manager) Cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
	for id, e := range m.entries {
		if e.State == Ended && now.Sub(e.EndTime) > m.visibilityWindow {
			delete(m.entries, id)
			changed = true
		}
	}
	if changed {
		m.bump()
	}
}

// bump must be called with mu held.
func (m *Manager) bump() {
	m.version.Add(1)
}

// HasStateChanged reports whether any mutation occurred since the last
// call to HasStateChanged, then resets the observed marker.
func (m *Manager) HasStateChanged() bool {
	cur := m.version.Load()
	prev := m.lastObservedVer.Swap(cur)
	return cur != prev
}

// Counts summarizes the population by state.
type Counts struct {
	Running int
	Pinned  int
	Ended   int
}

// Snapshot returns a sorted copy of every tracked entry (PINNED first,
// then RUNNING, then ENDED newest-first) plus population counts.
func (m *Manager) Snapshot() ([]Entry, Counts) {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.entries))
	var counts Counts
	for _, e := range m.entries {
		out = append(out, e.Entry)
		switch e.State {
		case Running:
			counts.Running++
		case Pinned:
			counts.Pinned++
		case Ended:
			counts.Ended++
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.State != b.State {
			return rank(a.State) < rank(b.State)
		}
		if a.State == Ended {
			return a.EndTime.After(b.EndTime)
		}
		return a.StartTime.After(b.StartTime)
	})

	return out, counts
}

func rank(s State) int {
	switch s {
	case Pinned:
		return 0
	case Running:
		return 1
	default:
		return 2
	}
}

// Apply updates the manager from a VirtualThreadEvent, ignoring
// SubmitFailed which carries no lifecycle transition.
func (m *Manager) Apply(e event.VirtualThreadEvent) {
	switch e.Transition {
	case event.VTStart:
		m.Start(e.ThreadID, e.ThreadName, e.CarrierID, e.Time)
	case event.VTPinned:
		m.MarkPinned(e.ThreadID)
	case event.VTEnd:
		m.End(e.ThreadID, e.Time)
	}
}
