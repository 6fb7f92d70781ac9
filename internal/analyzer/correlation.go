package analyzer

import (
	"fmt"
	"sync"
	"time"

	"argus/internal/event"
)

const (
	correlationWindow  = 10 * time.Second
	correlationMaxSkew = time.Second
	cpuSpikeThreshold  = 0.7
)

type gcObservation struct {
	at     time.Time
	cause  string
	pauseNs int64
}

type cpuSpikeObservation struct {
	at   time.Time
	load float64
}

type pinningObservation struct {
	at        time.Time
	topFrame  string
}

// Correlation is one timestamp-proximity match between two event families.
type Correlation struct {
	Primary     string    `json:"primary"`
	Correlated  string    `json:"correlated"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// Recommendation is a rule-table hit produced from periodic high-level metrics.
type Recommendation struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// CorrelationAnalyzer keeps short sliding windows of recent GC, CPU-spike,
// and pinning events and relates them by timestamp proximity, plus a
// fixed rule table evaluated against periodic high-level metrics.
type CorrelationAnalyzer struct {
	mu            sync.Mutex
	gcs           []gcObservation
	cpuSpikes     []cpuSpikeObservation
	pinnings      []pinningObservation
	correlations  []Correlation
}

// NewCorrelationAnalyzer constructs an empty CorrelationAnalyzer.
func NewCorrelationAnalyzer() *CorrelationAnalyzer {
	return &CorrelationAnalyzer{}
}

// RecordGC ingests one GC event, scanning CPU-spike and pinning windows
// for entries within correlationMaxSkew.
func (a *CorrelationAnalyzer) RecordGC(e event.GCEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.prune(e.Time)
	a.gcs = append(a.gcs, gcObservation{at: e.Time, cause: e.Cause, pauseNs: e.DurationNanos})

	for _, spike := range a.cpuSpikes {
		if absDuration(e.Time.Sub(spike.at)) <= correlationMaxSkew {
			a.correlations = append(a.correlations, Correlation{
				Primary:     "GC_PAUSE",
				Correlated:  "CPU_SPIKE",
				Description: fmt.Sprintf("GC pause (%s) within %s of CPU spike (load=%.2f)", e.Cause, correlationMaxSkew, spike.load),
				At:          e.Time,
			})
		}
	}
	for _, p := range a.pinnings {
		if absDuration(e.Time.Sub(p.at)) <= correlationMaxSkew {
			a.correlations = append(a.correlations, Correlation{
				Primary:     "GC_PAUSE",
				Correlated:  "PINNING",
				Description: fmt.Sprintf("GC pause (%s) within %s of pinning at %s", e.Cause, correlationMaxSkew, p.topFrame),
				At:          e.Time,
			})
		}
	}
}

// RecordCPU ingests one CPU sample, retaining it in the spike window only
// if it meets the spike threshold.
func (a *CorrelationAnalyzer) RecordCPU(e event.CPUEvent) {
	if e.MachineTotal < cpuSpikeThreshold {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prune(e.Time)
	a.cpuSpikes = append(a.cpuSpikes, cpuSpikeObservation{at: e.Time, load: e.MachineTotal})
}

// RecordPinning ingests one pinning observation (already-parsed top frame).
func (a *CorrelationAnalyzer) RecordPinning(at time.Time, topFrame string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prune(at)
	a.pinnings = append(a.pinnings, pinningObservation{at: at, topFrame: topFrame})
}

// prune must be called with mu held; drops entries older than
// correlationWindow relative to now.
func (a *CorrelationAnalyzer) prune(now time.Time) {
	a.gcs = pruneGC(a.gcs, now)
	a.cpuSpikes = pruneCPU(a.cpuSpikes, now)
	a.pinnings = prunePinning(a.pinnings, now)
}

func pruneGC(s []gcObservation, now time.Time) []gcObservation {
	i := 0
	for i < len(s) && now.Sub(s[i].at) > correlationWindow {
		i++
	}
	return s[i:]
}

func pruneCPU(s []cpuSpikeObservation, now time.Time) []cpuSpikeObservation {
	i := 0
	for i < len(s) && now.Sub(s[i].at) > correlationWindow {
		i++
	}
	return s[i:]
}

func prunePinning(s []pinningObservation, now time.Time) []pinningObservation {
	i := 0
	for i < len(s) && now.Sub(s[i].at) > correlationWindow {
		i++
	}
	return s[i:]
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// HighLevelMetrics is the periodic aggregate input to the recommendation
// rule table.
type HighLevelMetrics struct {
	GCOverheadPercent  float64
	HeapGrowthRate     float64
	AllocationRate     float64
	ContentionTimeNs   int64
	MetaspaceGrowthRate float64
}

type correlationRule struct {
	code     string
	severity string
	message  string
	trigger  func(HighLevelMetrics) bool
}

var correlationRules = []correlationRule{
	{
		code:     "GC_OVERHEAD_HIGH",
		severity: "WARNING",
		message:  "GC overhead exceeds 10% of wall-clock time",
		trigger:  func(m HighLevelMetrics) bool { return m.GCOverheadPercent > 10 },
	},
	{
		code:     "MEMORY_LEAK_SUSPECTED",
		severity: "CRITICAL",
		message:  "Heap usage has grown steadily with no corresponding collection relief",
		trigger:  func(m HighLevelMetrics) bool { return m.HeapGrowthRate > 0 && m.GCOverheadPercent > 5 },
	},
	{
		code:     "ALLOCATION_RATE_HIGH",
		severity: "WARNING",
		message:  "Allocation rate exceeds 500 MiB/s",
		trigger:  func(m HighLevelMetrics) bool { return m.AllocationRate > 500*1024*1024 },
	},
	{
		code:     "CONTENTION_HOTSPOT",
		severity: "WARNING",
		message:  "Cumulative lock-contention time exceeds 1 second",
		trigger:  func(m HighLevelMetrics) bool { return m.ContentionTimeNs > int64(time.Second) },
	},
	{
		code:     "METASPACE_GROWTH",
		severity: "INFO",
		message:  "Metaspace usage is growing steadily",
		trigger:  func(m HighLevelMetrics) bool { return m.MetaspaceGrowthRate > 0 },
	},
}

// Recommendations evaluates the fixed rule table against the given
// high-level metrics, returning a fresh list (never accumulated state).
func (a *CorrelationAnalyzer) Recommendations(m HighLevelMetrics) []Recommendation {
	var out []Recommendation
	for _, rule := range correlationRules {
		if rule.trigger(m) {
			out = append(out, Recommendation{Code: rule.code, Severity: rule.severity, Message: rule.message})
		}
	}
	return out
}

// CorrelationAnalysis is the get_analysis() snapshot for correlations.
type CorrelationAnalysis struct {
	GCCPUCorrelations      []Correlation `json:"gcCpuCorrelations"`
	GCPinningCorrelations  []Correlation `json:"gcPinningCorrelations"`
}

// GetAnalysis returns the correlations observed so far, split by pairing.
func (a *CorrelationAnalyzer) GetAnalysis() CorrelationAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	var gcCPU, gcPinning []Correlation
	for _, c := range a.correlations {
		switch c.Correlated {
		case "CPU_SPIKE":
			gcCPU = append(gcCPU, c)
		case "PINNING":
			gcPinning = append(gcPinning, c)
		}
	}
	return CorrelationAnalysis{GCCPUCorrelations: gcCPU, GCPinningCorrelations: gcPinning}
}
