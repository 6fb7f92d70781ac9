package analyzer

import (
	"sort"
	"sync"
	"sync/atomic"

	"argus/internal/event"
)

const gcHistoryCap = 100

// GCAnalyzer tracks garbage-collection pause totals, a cause histogram,
// and a bounded history ring of recent events.
type GCAnalyzer struct {
	eventCount    atomic.Int64
	totalPauseNs  atomic.Int64
	maxPauseNs    atomic.Int64
	lastUsed      atomic.Int64
	lastCommitted atomic.Int64

	mu      sync.Mutex
	causes  map[string]int64
	history []event.GCEvent // ring semantics via slice trim, oldest first
}

// NewGCAnalyzer constructs an empty GCAnalyzer.
func NewGCAnalyzer() *GCAnalyzer {
	return &GCAnalyzer{causes: make(map[string]int64)}
}

// Record ingests one GC event.
func (a *GCAnalyzer) Record(e event.GCEvent) {
	a.eventCount.Add(1)
	a.totalPauseNs.Add(e.DurationNanos)
	a.lastUsed.Store(int64(e.HeapUsedAfter))
	a.lastCommitted.Store(int64(e.HeapCommitted))

	for {
		cur := a.maxPauseNs.Load()
		if e.DurationNanos <= cur {
			break
		}
		if a.maxPauseNs.CompareAndSwap(cur, e.DurationNanos) {
			break
		}
	}

	a.mu.Lock()
	if e.Cause != "" {
		a.causes[e.Cause]++
	}
	a.history = append(a.history, e)
	if len(a.history) > gcHistoryCap {
		a.history = a.history[len(a.history)-gcHistoryCap:]
	}
	a.mu.Unlock()
}

// GCAnalysis is the get_analysis() snapshot for the GC analyzer.
type GCAnalysis struct {
	EventCount    int64            `json:"eventCount"`
	TotalPauseNs  int64            `json:"totalPauseNanos"`
	MaxPauseNs    int64            `json:"maxPauseNanos"`
	AveragePauseNs float64         `json:"averagePauseNanos"`
	LastHeapUsed  int64            `json:"lastHeapUsed"`
	LastHeapCommitted int64        `json:"lastHeapCommitted"`
	RecentEvents  []event.GCEvent  `json:"recentEvents"`
	CauseHistogram map[string]int64 `json:"causeHistogram"`
}

// GetAnalysis returns totals, averages, the most-recent 20 events
// newest-first, and the cause histogram.
func (a *GCAnalyzer) GetAnalysis() GCAnalysis {
	count := a.eventCount.Load()
	totalPause := a.totalPauseNs.Load()
	var avg float64
	if count > 0 {
		avg = float64(totalPause) / float64(count)
	}

	a.mu.Lock()
	causes := make(map[string]int64, len(a.causes))
	for k, v := range a.causes {
		causes[k] = v
	}
	n := len(a.history)
	limit := 20
	if n < limit {
		limit = n
	}
	recent := make([]event.GCEvent, limit)
	for i := 0; i < limit; i++ {
		recent[i] = a.history[n-1-i] // newest first
	}
	a.mu.Unlock()

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].Time.After(recent[j].Time)
	})

	return GCAnalysis{
		EventCount:        count,
		TotalPauseNs:       totalPause,
		MaxPauseNs:         a.maxPauseNs.Load(),
		AveragePauseNs:     avg,
		LastHeapUsed:       a.lastUsed.Load(),
		LastHeapCommitted:  a.lastCommitted.Load(),
		RecentEvents:       recent,
		CauseHistogram:     causes,
	}
}
