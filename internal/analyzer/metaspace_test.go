package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
)

func TestMetaspaceAnalyzerTracksGrowth(t *testing.T) {
	a := NewMetaspaceAnalyzer()
	now := time.Now()
	a.Record(event.MetaspaceEvent{Time: now, Used: 1000})
	a.Record(event.MetaspaceEvent{Time: now.Add(time.Minute), Used: 1500})

	got := a.GetAnalysis()
	require.NotNil(t, got.Current)
	assert.EqualValues(t, 1500, got.Current.Used)
	assert.EqualValues(t, 1500, got.PeakUsed)
	assert.InDelta(t, 500.0, got.GrowthPerMinute, 0.01)
}
