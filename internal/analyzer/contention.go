package analyzer

import (
	"sort"
	"sync"
	"sync/atomic"

	"argus/internal/event"
)

const contentionTopN = 20

type monitorStat struct {
	eventCount atomic.Int64
	totalNs    atomic.Int64
	enterCount atomic.Int64
	waitCount  atomic.Int64
}

type threadContention struct {
	totalNs atomic.Int64
}

// ContentionAnalyzer tracks per-monitor-class and per-thread lock
// contention totals.
type ContentionAnalyzer struct {
	mu       sync.Mutex
	monitors map[string]*monitorStat
	threads  map[uint64]*threadContention
}

// NewContentionAnalyzer constructs an empty ContentionAnalyzer.
func NewContentionAnalyzer() *ContentionAnalyzer {
	return &ContentionAnalyzer{
		monitors: make(map[string]*monitorStat),
		threads:  make(map[uint64]*threadContention),
	}
}

// Record ingests one contention event.
func (a *ContentionAnalyzer) Record(e event.ContentionEvent) {
	a.mu.Lock()
	m, ok := a.monitors[e.MonitorClass]
	if !ok {
		m = &monitorStat{}
		a.monitors[e.MonitorClass] = m
	}
	t, ok := a.threads[e.ThreadID]
	if !ok {
		t = &threadContention{}
		a.threads[e.ThreadID] = t
	}
	a.mu.Unlock()

	m.eventCount.Add(1)
	m.totalNs.Add(e.DurationNanos)
	if e.Kind2 == event.ContentionWait {
		m.waitCount.Add(1)
	} else {
		m.enterCount.Add(1)
	}
	t.totalNs.Add(e.DurationNanos)
}

// MonitorHotspot is one ranked monitor-class contention entry.
type MonitorHotspot struct {
	Rank         int     `json:"rank"`
	MonitorClass string  `json:"monitorClass"`
	EventCount   int64   `json:"eventCount"`
	TotalNs      int64   `json:"totalNanos"`
	EnterCount   int64   `json:"enterCount"`
	WaitCount    int64   `json:"waitCount"`
	Percentage   float64 `json:"percentage"`
}

// ContentionAnalysis is the get_analysis() snapshot for contention.
type ContentionAnalysis struct {
	Hotspots []MonitorHotspot `json:"hotspots"`
}

// GetAnalysis returns the top monitor-class hotspots by total
// contention time, with percentages of grand total.
func (a *ContentionAnalyzer) GetAnalysis() ContentionAnalysis {
	a.mu.Lock()
	type kv struct {
		name string
		m    *monitorStat
	}
	all := make([]kv, 0, len(a.monitors))
	for name, m := range a.monitors {
		all = append(all, kv{name, m})
	}
	a.mu.Unlock()

	var grandTotal int64
	for _, e := range all {
		grandTotal += e.m.totalNs.Load()
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].m.totalNs.Load() > all[j].m.totalNs.Load()
	})
	if len(all) > contentionTopN {
		all = all[:contentionTopN]
	}

	out := make([]MonitorHotspot, 0, len(all))
	for i, e := range all {
		total := e.m.totalNs.Load()
		var pct float64
		if grandTotal > 0 {
			pct = float64(total) / float64(grandTotal) * 100
		}
		out = append(out, MonitorHotspot{
			Rank:         i + 1,
			MonitorClass: e.name,
			EventCount:   e.m.eventCount.Load(),
			TotalNs:      total,
			EnterCount:   e.m.enterCount.Load(),
			WaitCount:    e.m.waitCount.Load(),
			Percentage:   pct,
		})
	}

	return ContentionAnalysis{Hotspots: out}
}
