package analyzer

import (
	"sync"
	"sync/atomic"

	"argus/internal/event"
)

const cpuHistoryCap = 60

// float64Peak is a CAS-loop bit-pattern max tracker for float64 gauges.
type float64Peak struct {
	bits atomic.Uint64
}

func (p *float64Peak) update(v float64) {
	for {
		cur := p.load()
		if v <= cur {
			return
		}
		if p.bits.CompareAndSwap(floatToBits(cur), floatToBits(v)) {
			return
		}
	}
}

func (p *float64Peak) load() float64 {
	return bitsToFloat(p.bits.Load())
}

// CPUAnalyzer maintains a bounded history of CPU load snapshots and
// running peaks for JVM-total and machine-total load.
type CPUAnalyzer struct {
	jvmTotalPeak     float64Peak
	machineTotalPeak float64Peak

	mu      sync.Mutex
	history []event.CPUEvent
}

// NewCPUAnalyzer constructs an empty CPUAnalyzer.
func NewCPUAnalyzer() *CPUAnalyzer {
	return &CPUAnalyzer{}
}

// Record ingests one CPU load sample.
func (a *CPUAnalyzer) Record(e event.CPUEvent) {
	a.jvmTotalPeak.update(e.JVMUser + e.JVMSystem)
	a.machineTotalPeak.update(e.MachineTotal)

	a.mu.Lock()
	a.history = append(a.history, e)
	if len(a.history) > cpuHistoryCap {
		a.history = a.history[len(a.history)-cpuHistoryCap:]
	}
	a.mu.Unlock()
}

// CPUAnalysis is the get_analysis() snapshot for the CPU analyzer.
type CPUAnalysis struct {
	Current          *event.CPUEvent  `json:"current,omitempty"`
	History          []event.CPUEvent `json:"history"`
	AverageJVMTotal   float64         `json:"averageJvmTotal"`
	AverageMachine    float64         `json:"averageMachineTotal"`
	PeakJVMTotal      float64         `json:"peakJvmTotal"`
	PeakMachineTotal  float64         `json:"peakMachineTotal"`
}

// GetAnalysis returns the current sample, full history, rolling
// averages over the ring, and peaks.
func (a *CPUAnalyzer) GetAnalysis() CPUAnalysis {
	a.mu.Lock()
	history := make([]event.CPUEvent, len(a.history))
	copy(history, a.history)
	a.mu.Unlock()

	var sumJVM, sumMachine float64
	for _, e := range history {
		sumJVM += e.JVMUser + e.JVMSystem
		sumMachine += e.MachineTotal
	}
	var avgJVM, avgMachine float64
	if len(history) > 0 {
		avgJVM = sumJVM / float64(len(history))
		avgMachine = sumMachine / float64(len(history))
	}

	var current *event.CPUEvent
	if len(history) > 0 {
		c := history[len(history)-1]
		current = &c
	}

	return CPUAnalysis{
		Current:          current,
		History:          history,
		AverageJVMTotal:  avgJVM,
		AverageMachine:   avgMachine,
		PeakJVMTotal:     a.jvmTotalPeak.load(),
		PeakMachineTotal: a.machineTotalPeak.load(),
	}
}
