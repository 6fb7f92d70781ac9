package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
)

func rec(id uint64) Record {
	e := event.VirtualThreadEvent{ThreadID: id, Time: time.Now()}
	j, _ := e.MarshalJSON()
	return Record{Event: e, JSON: j}
}

func TestRecentRingBoundedAndOldestEvicted(t *testing.T) {
	s := NewStore(4, 100, 100)
	for i := uint64(0); i < 6; i++ {
		s.Append(rec(i), i, true)
	}
	recent := s.Recent()
	require.Len(t, recent, 4)
	assert.Equal(t, uint64(2), recent[0].Event.(event.VirtualThreadEvent).ThreadID)
	assert.Equal(t, uint64(5), recent[3].Event.(event.VirtualThreadEvent).ThreadID)
}

func TestPerThreadBufferIsolatedByThreadID(t *testing.T) {
	s := NewStore(100, 100, 1000)
	for i := 0; i < 3; i++ {
		s.Append(rec(1), 1, true)
	}
	s.Append(rec(2), 2, true)

	assert.Len(t, s.ThreadEvents(1), 3)
	assert.Len(t, s.ThreadEvents(2), 1)
	assert.Empty(t, s.ThreadEvents(99))
}

func TestPerThreadBufferCapsAt100(t *testing.T) {
	s := NewStore(100, 1000, 10000)
	for i := 0; i < 150; i++ {
		s.Append(rec(1), 1, true)
	}
	assert.Len(t, s.ThreadEvents(1), 100)
}

func TestExportVectorCapped(t *testing.T) {
	s := NewStore(10, 5, 1000)
	for i := uint64(0); i < 8; i++ {
		s.Append(rec(i), i, true)
	}
	exp := s.ExportSnapshot()
	require.Len(t, exp, 5)
	assert.Equal(t, uint64(3), exp[0].Event.(event.VirtualThreadEvent).ThreadID)
}

func TestNonThreadEventsSkipPerThreadBuffer(t *testing.T) {
	s := NewStore(10, 10, 10)
	s.Append(rec(1), 0, false)
	assert.Empty(t, s.ThreadEvents(0))
	assert.Len(t, s.Recent(), 1)
}
