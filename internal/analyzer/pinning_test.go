package analyzer

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinningDetectionScenario(t *testing.T) {
	a := NewPinningAnalyzer()
	stack := "at a.X.m(1)\nat a.Y.n(2)"
	for i := 0; i < 5; i++ {
		a.Record(stack)
	}

	got := a.GetAnalysis()
	assert.EqualValues(t, 5, got.TotalPinnedEvents)
	assert.Equal(t, 1, got.UniqueStackTraces)
	require.Len(t, got.Hotspots, 1)
	h := got.Hotspots[0]
	assert.Equal(t, 1, h.Rank)
	assert.EqualValues(t, 5, h.Count)
	assert.InDelta(t, 100.0, h.Percentage, 0.001)
	assert.Equal(t, "a.X.m(1)", h.TopFrame)
}

func TestPinningRanksConsecutiveAndCountsNonIncreasing(t *testing.T) {
	a := NewPinningAnalyzer()
	for i := 0; i < 5; i++ {
		a.Record("at A.one(1)")
	}
	for i := 0; i < 3; i++ {
		a.Record("at B.two(2)")
	}
	a.Record("at C.three(3)")

	got := a.GetAnalysis()
	require.Len(t, got.Hotspots, 3)
	var pctSum float64
	for i, h := range got.Hotspots {
		assert.Equal(t, i+1, h.Rank)
		if i > 0 {
			assert.LessOrEqual(t, h.Count, got.Hotspots[i-1].Count)
		}
		pctSum += h.Percentage
	}
	assert.LessOrEqual(t, pctSum, 100.01)
}

func TestPinningIdenticalStacksMapToSameDigest(t *testing.T) {
	a := NewPinningAnalyzer()
	a.Record("at Same.frame(1)")
	a.Record("at Same.frame(1)")
	got := a.GetAnalysis()
	assert.Equal(t, 1, got.UniqueStackTraces)
}

func TestPinningSumOfHotspotCountsLessOrEqualTotal(t *testing.T) {
	a := NewPinningAnalyzer()
	for i := 0; i < 20; i++ {
		a.Record("at Hot.path(1)")
	}
	for i := 0; i < 300; i++ {
		a.Record(uniqueStack(i))
	}
	got := a.GetAnalysis()
	var sum int64
	for _, h := range got.Hotspots {
		sum += h.Count
	}
	assert.LessOrEqual(t, sum, got.TotalPinnedEvents)
}

func uniqueStack(i int) string {
	return "at Unique.frame" + strconv.Itoa(i) + "(1)"
}
