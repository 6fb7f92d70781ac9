package analyzer

import (
	"sync"
	"sync/atomic"

	"argus/internal/event"
)

const metaspaceHistoryCap = 60

// MetaspaceAnalyzer tracks metaspace/class-loader usage over time,
// mirroring CPUAnalyzer's shape: bounded history, peak, current,
// plus a growth-rate-per-minute derived from the oldest and newest
// retained samples.
type MetaspaceAnalyzer struct {
	peakUsed atomic.Uint64

	mu      sync.Mutex
	history []event.MetaspaceEvent
}

// NewMetaspaceAnalyzer constructs an empty MetaspaceAnalyzer.
func NewMetaspaceAnalyzer() *MetaspaceAnalyzer {
	return &MetaspaceAnalyzer{}
}

// Record ingests one metaspace usage sample.
func (a *MetaspaceAnalyzer) Record(e event.MetaspaceEvent) {
	for {
		cur := a.peakUsed.Load()
		if e.Used <= cur {
			break
		}
		if a.peakUsed.CompareAndSwap(cur, e.Used) {
			break
		}
	}

	a.mu.Lock()
	a.history = append(a.history, e)
	if len(a.history) > metaspaceHistoryCap {
		a.history = a.history[len(a.history)-metaspaceHistoryCap:]
	}
	a.mu.Unlock()
}

// MetaspaceAnalysis is the get_analysis() snapshot for the metaspace analyzer.
type MetaspaceAnalysis struct {
	Current          *event.MetaspaceEvent  `json:"current,omitempty"`
	History          []event.MetaspaceEvent `json:"history"`
	PeakUsed         uint64                 `json:"peakUsed"`
	GrowthPerMinute  float64                `json:"growthPerMinute"`
}

// GetAnalysis returns current usage, history, peak, and growth rate per
// minute computed from the first and most-recent retained samples.
func (a *MetaspaceAnalyzer) GetAnalysis() MetaspaceAnalysis {
	a.mu.Lock()
	history := make([]event.MetaspaceEvent, len(a.history))
	copy(history, a.history)
	a.mu.Unlock()

	var current *event.MetaspaceEvent
	var growth float64
	if len(history) > 0 {
		c := history[len(history)-1]
		current = &c
	}
	if len(history) >= 2 {
		first, last := history[0], history[len(history)-1]
		elapsed := last.Time.Sub(first.Time).Minutes()
		if elapsed > 0 {
			growth = (float64(last.Used) - float64(first.Used)) / elapsed
		}
	}

	return MetaspaceAnalysis{
		Current:         current,
		History:         history,
		PeakUsed:        a.peakUsed.Load(),
		GrowthPerMinute: growth,
	}
}
