package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
)

func TestProfilingAnalyzerTopMethods(t *testing.T) {
	a := NewProfilingAnalyzer()
	for i := 0; i < 5; i++ {
		a.Record(event.ExecutionSampleEvent{TopClass: "com.acme.Hot", TopMethod: "run"})
	}
	a.Record(event.ExecutionSampleEvent{TopClass: "com.acme.Cold", TopMethod: "run"})

	got := a.GetAnalysis()
	assert.EqualValues(t, 6, got.TotalSamples)
	require.NotEmpty(t, got.TopMethods)
	assert.Equal(t, "com.acme.Hot.run", got.TopMethods[0].Method)
	assert.InDelta(t, 5.0/6.0*100, got.TopMethods[0].Percentage, 0.01)
}
