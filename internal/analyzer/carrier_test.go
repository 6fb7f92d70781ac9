package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
)

func TestCarrierMappingScenario(t *testing.T) {
	a := NewCarrierAnalyzer()
	now := time.Now()
	a.Record(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: 7, CarrierID: 3, Time: now})
	a.Record(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: 8, CarrierID: 3, Time: now})
	a.Record(event.VirtualThreadEvent{Transition: event.VTEnd, ThreadID: 7, Time: now.Add(time.Millisecond)})

	got := a.GetAnalysis()
	require.Len(t, got.Carriers, 1)
	c := got.Carriers[0]
	assert.EqualValues(t, 2, c.TotalVirtualThreads)
	assert.EqualValues(t, 1, c.CurrentVirtualThreads)
}

func TestCarrierUtilizationRelativeToMax(t *testing.T) {
	a := NewCarrierAnalyzer()
	now := time.Now()
	for i := 0; i < 10; i++ {
		a.Record(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: uint64(i), CarrierID: 1, Time: now})
	}
	a.Record(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: 100, CarrierID: 2, Time: now})

	got := a.GetAnalysis()
	require.Len(t, got.Carriers, 2)
	for _, c := range got.Carriers {
		if c.CarrierID == 1 {
			assert.InDelta(t, 1.0, c.Utilization, 0.001)
		} else {
			assert.InDelta(t, 0.1, c.Utilization, 0.001)
		}
	}
}
