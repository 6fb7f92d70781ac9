package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"argus/internal/event"
)

func TestGCAnalyzerTracksTotalsAndMaxPause(t *testing.T) {
	a := NewGCAnalyzer()
	now := time.Now()
	a.Record(event.GCEvent{Time: now, DurationNanos: 10_000_000, Cause: "Allocation Failure", HeapUsedAfter: 100})
	a.Record(event.GCEvent{Time: now.Add(time.Second), DurationNanos: 50_000_000, Cause: "Metadata GC Threshold", HeapUsedAfter: 200})

	got := a.GetAnalysis()
	assert.EqualValues(t, 2, got.EventCount)
	assert.EqualValues(t, 60_000_000, got.TotalPauseNs)
	assert.EqualValues(t, 50_000_000, got.MaxPauseNs)
	assert.EqualValues(t, 200, got.LastHeapUsed)
	assert.Len(t, got.RecentEvents, 2)
	assert.True(t, got.RecentEvents[0].Time.After(got.RecentEvents[1].Time))
	assert.Equal(t, int64(1), got.CauseHistogram["Allocation Failure"])
}

func TestGCAnalyzerHistoryBoundedTo100(t *testing.T) {
	a := NewGCAnalyzer()
	now := time.Now()
	for i := 0; i < 150; i++ {
		a.Record(event.GCEvent{Time: now.Add(time.Duration(i) * time.Millisecond), DurationNanos: 1})
	}
	got := a.GetAnalysis()
	assert.EqualValues(t, 150, got.EventCount)
	assert.LessOrEqual(t, len(got.RecentEvents), 20)
	assert.LessOrEqual(t, len(a.history), 100)
}
