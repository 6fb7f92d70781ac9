package analyzer

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"argus/internal/event"
)

const allocationTopN = 20

type classStat struct {
	bytes atomic.Uint64
	count atomic.Int64
}

// AllocationAnalyzer tracks per-class allocation totals and a rolling
// byte-rate estimate. The size threshold is applied at ingestion time
// (internal/ingest), not here — every event reaching Record counts.
type AllocationAnalyzer struct {
	totalAllocations atomic.Int64
	totalBytes       atomic.Uint64

	mu      sync.Mutex
	classes map[string]*classStat

	rateMu       sync.Mutex
	rateInterval time.Duration
	lastSampleAt time.Time
	lastSampleBytes uint64
	currentRate  float64
}

// NewAllocationAnalyzer constructs an empty AllocationAnalyzer with the
// default 1-second rate-sampling interval.
func NewAllocationAnalyzer() *AllocationAnalyzer {
	return &AllocationAnalyzer{
		classes:      make(map[string]*classStat),
		rateInterval: time.Second,
	}
}

// Record ingests one allocation event (already past the size threshold).
func (a *AllocationAnalyzer) Record(e event.AllocationEvent) {
	a.totalAllocations.Add(1)
	newTotal := a.totalBytes.Add(e.SizeBytes)

	a.mu.Lock()
	c, ok := a.classes[e.ClassName]
	if !ok {
		c = &classStat{}
		a.classes[e.ClassName] = c
	}
	a.mu.Unlock()
	c.bytes.Add(e.SizeBytes)
	c.count.Add(1)

	a.sampleRate(e.Time, newTotal)
}

// sampleRate updates the rolling rate estimator at most once per
// rateInterval, independent of how often Record is called.
func (a *AllocationAnalyzer) sampleRate(now time.Time, totalBytes uint64) {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	if a.lastSampleAt.IsZero() {
		a.lastSampleAt = now
		a.lastSampleBytes = totalBytes
		return
	}
	elapsed := now.Sub(a.lastSampleAt)
	if elapsed < a.rateInterval {
		return
	}
	delta := float64(totalBytes - a.lastSampleBytes)
	a.currentRate = delta / elapsed.Seconds()
	a.lastSampleAt = now
	a.lastSampleBytes = totalBytes
}

// ClassAllocation is one ranked per-class allocation entry.
type ClassAllocation struct {
	ClassName string `json:"className"`
	Bytes     uint64 `json:"bytes"`
	Count     int64  `json:"count"`
}

// AllocationAnalysis is the get_analysis() snapshot for allocations.
type AllocationAnalysis struct {
	TotalAllocations int64             `json:"totalAllocations"`
	TotalBytes       uint64            `json:"totalBytes"`
	RateBytesPerSec  float64           `json:"rateBytesPerSecond"`
	TopClasses       []ClassAllocation `json:"topClasses"`
}

// GetAnalysis returns totals, the current rate estimate, and the top
// classes by bytes allocated.
func (a *AllocationAnalyzer) GetAnalysis() AllocationAnalysis {
	a.mu.Lock()
	entries := make([]ClassAllocation, 0, len(a.classes))
	for name, c := range a.classes {
		entries = append(entries, ClassAllocation{
			ClassName: name,
			Bytes:     c.bytes.Load(),
			Count:     c.count.Load(),
		})
	}
	a.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Bytes > entries[j].Bytes })
	if len(entries) > allocationTopN {
		entries = entries[:allocationTopN]
	}

	a.rateMu.Lock()
	rate := a.currentRate
	a.rateMu.Unlock()

	return AllocationAnalysis{
		TotalAllocations: a.totalAllocations.Load(),
		TotalBytes:       a.totalBytes.Load(),
		RateBytesPerSec:  rate,
		TopClasses:       entries,
	}
}
