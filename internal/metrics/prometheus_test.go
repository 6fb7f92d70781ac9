package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"argus/internal/broadcast"
)

func TestWritePrometheusOnlyEnabledFamiliesContribute(t *testing.T) {
	var counters broadcast.Counters
	counters.VirtualThread.Store(5)
	counters.GC.Store(3)

	var buf strings.Builder
	WritePrometheus(&buf, Snapshot{
		Counters:        &counters,
		SubscriberCount: 2,
		Enabled:         Family{VirtualThread: true},
	})

	out := buf.String()
	assert.Contains(t, out, "argus_virtual_thread_events_total 5")
	assert.NotContains(t, out, "argus_gc_events_total")
}

func TestWritePrometheusEscapesLabels(t *testing.T) {
	var counters broadcast.Counters
	var buf strings.Builder
	WritePrometheus(&buf, Snapshot{
		Counters:        &counters,
		Enabled:         Family{Contention: true},
		Contention:      []ContentionGauge{{MonitorClass: `weird"class` + "\n", TotalNs: 1}},
	})
	out := buf.String()
	assert.Contains(t, out, `weird\"class\n`)
}

func TestWritePrometheusHelpTypeLines(t *testing.T) {
	var counters broadcast.Counters
	var buf strings.Builder
	WritePrometheus(&buf, Snapshot{Counters: &counters})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# HELP argus_subscribers"))
}
