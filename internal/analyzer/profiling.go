package analyzer

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"argus/internal/event"
)

const profilingTopN = 20

type methodCounter struct {
	count atomic.Int64
}

// ProfilingAnalyzer accumulates per-fully-qualified-method and
// per-package execution-sample counts.
type ProfilingAnalyzer struct {
	total atomic.Int64

	mu       sync.Mutex
	methods  map[string]*methodCounter
	packages map[string]*methodCounter
}

// NewProfilingAnalyzer constructs an empty ProfilingAnalyzer.
func NewProfilingAnalyzer() *ProfilingAnalyzer {
	return &ProfilingAnalyzer{
		methods:  make(map[string]*methodCounter),
		packages: make(map[string]*methodCounter),
	}
}

// Record ingests one execution sample.
func (a *ProfilingAnalyzer) Record(e event.ExecutionSampleEvent) {
	a.total.Add(1)
	fqMethod := e.TopClass + "." + e.TopMethod

	a.mu.Lock()
	m, ok := a.methods[fqMethod]
	if !ok {
		m = &methodCounter{}
		a.methods[fqMethod] = m
	}
	pkg := packageOf(e.TopClass)
	p, ok := a.packages[pkg]
	if !ok {
		p = &methodCounter{}
		a.packages[pkg] = p
	}
	a.mu.Unlock()

	m.count.Add(1)
	p.count.Add(1)
}

func packageOf(className string) string {
	idx := strings.LastIndex(className, ".")
	if idx < 0 {
		return ""
	}
	return className[:idx]
}

// MethodSample is one ranked method sample entry.
type MethodSample struct {
	Method     string  `json:"method"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ProfilingAnalysis is the get_analysis() snapshot for method profiling.
type ProfilingAnalysis struct {
	TotalSamples int64           `json:"totalSamples"`
	TopMethods   []MethodSample  `json:"topMethods"`
	TopPackages  []MethodSample  `json:"topPackages"`
}

// GetAnalysis returns total samples and top-N methods/packages by count
// descending with computed percentages.
func (a *ProfilingAnalyzer) GetAnalysis() ProfilingAnalysis {
	total := a.total.Load()

	a.mu.Lock()
	methods := rankedSamples(a.methods, total)
	packages := rankedSamples(a.packages, total)
	a.mu.Unlock()

	return ProfilingAnalysis{
		TotalSamples: total,
		TopMethods:   methods,
		TopPackages:  packages,
	}
}

func rankedSamples(m map[string]*methodCounter, total int64) []MethodSample {
	out := make([]MethodSample, 0, len(m))
	for name, c := range m {
		out = append(out, MethodSample{Method: name, Count: c.count.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > profilingTopN {
		out = out[:profilingTopN]
	}
	for i := range out {
		if total > 0 {
			out[i].Percentage = float64(out[i].Count) / float64(total) * 100
		}
	}
	return out
}
