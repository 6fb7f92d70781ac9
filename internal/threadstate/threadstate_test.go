package threadstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
)

func TestStartThenEndLeavesEntryEnded(t *testing.T) {
	m := NewManager(3 * time.Second)
	start := time.Now()
	m.Start(1, "worker-1", 5, start)
	m.End(1, start.Add(10*time.Millisecond))

	entries, counts := m.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, Ended, entries[0].State)
	assert.False(t, entries[0].EndTime.IsZero())
	assert.Equal(t, 1, counts.Ended)
}

func TestPinnedOnAbsentEntryIsIgnored(t *testing.T) {
	m := NewManager(3 * time.Second)
	m.MarkPinned(999)
	entries, _ := m.Snapshot()
	assert.Empty(t, entries)
}

func TestCleanupRemovesOnlyExpiredEnded(t *testing.T) {
	m := NewManager(100 * time.Millisecond)
	start := time.Now()
	m.Start(1, "a", -1, start)
	m.End(1, start)
	m.Start(2, "b", -1, start)
	m.End(2, start)

	m.Cleanup(start.Add(50 * time.Millisecond))
	entries, _ := m.Snapshot()
	assert.Len(t, entries, 2, "not yet past visibility window")

	m.Cleanup(start.Add(200 * time.Millisecond))
	entries, _ = m.Snapshot()
	assert.Empty(t, entries, "past visibility window")
}

func TestHasStateChangedTrueOnceThenFalse(t *testing.T) {
	m := NewManager(3 * time.Second)
	m.Start(1, "a", -1, time.Now())

	assert.True(t, m.HasStateChanged())
	assert.False(t, m.HasStateChanged(), "no mutation since last call")

	m.MarkPinned(1)
	assert.True(t, m.HasStateChanged())
	assert.False(t, m.HasStateChanged())
}

func TestSnapshotOrdersPinnedThenRunningThenEndedNewestFirst(t *testing.T) {
	m := NewManager(3 * time.Second)
	base := time.Now()
	m.Start(1, "running", -1, base)
	m.Start(2, "pinned", -1, base)
	m.MarkPinned(2)
	m.Start(3, "ended-older", -1, base)
	m.End(3, base.Add(1*time.Millisecond))
	m.Start(4, "ended-newer", -1, base)
	m.End(4, base.Add(5*time.Millisecond))

	entries, counts := m.Snapshot()
	require.Len(t, entries, 4)
	assert.Equal(t, Pinned, entries[0].State)
	assert.Equal(t, Running, entries[1].State)
	assert.Equal(t, Ended, entries[2].State)
	assert.Equal(t, Ended, entries[3].State)
	assert.True(t, entries[2].EndTime.After(entries[3].EndTime) || entries[2].EndTime.Equal(entries[3].EndTime))
	assert.Equal(t, uint64(4), entries[2].ThreadID)
	assert.Equal(t, uint64(3), entries[3].ThreadID)
	assert.Equal(t, Counts{Running: 1, Pinned: 1, Ended: 2}, counts)
}

func TestApplyRoutesTransitions(t *testing.T) {
	m := NewManager(3 * time.Second)
	now := time.Now()
	m.Apply(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: 7, CarrierID: 3, Time: now})
	m.Apply(event.VirtualThreadEvent{Transition: event.VTPinned, ThreadID: 7, Time: now})
	entries, _ := m.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, Pinned, entries[0].State)

	m.Apply(event.VirtualThreadEvent{Transition: event.VTEnd, ThreadID: 7, Time: now.Add(time.Second)})
	entries, _ = m.Snapshot()
	assert.Equal(t, Ended, entries[0].State)
}
