package analyzer

import (
	"sync"
	"time"

	"argus/internal/event"
)

type carrierStats struct {
	totalVirtualThreads   int64
	currentVirtualThreads int64
	pinnedEvents          int64
	lastActivity          time.Time
}

// CarrierAnalyzer tracks per-carrier-thread virtual-thread occupancy.
//
// End events from the host often omit the carrier id, so the analyzer
// remembers the carrier a virtual thread started on in a side map keyed
// by virtual thread id, consulted on End.
type CarrierAnalyzer struct {
	mu             sync.Mutex
	carriers       map[int64]*carrierStats
	startedCarrier map[uint64]int64 // virtual thread id -> carrier id at Start
}

// NewCarrierAnalyzer constructs an empty CarrierAnalyzer.
func NewCarrierAnalyzer() *CarrierAnalyzer {
	return &CarrierAnalyzer{
		carriers:       make(map[int64]*carrierStats),
		startedCarrier: make(map[uint64]int64),
	}
}

// Record ingests one virtual-thread lifecycle event.
func (a *CarrierAnalyzer) Record(e event.VirtualThreadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Transition {
	case event.VTStart:
		carrier := e.CarrierID
		if carrier == event.UnknownCarrier {
			return
		}
		a.startedCarrier[e.ThreadID] = carrier
		c := a.carrier(carrier)
		c.totalVirtualThreads++
		c.currentVirtualThreads++
		c.lastActivity = e.Time

	case event.VTEnd:
		carrier, ok := a.startedCarrier[e.ThreadID]
		if !ok {
			return
		}
		delete(a.startedCarrier, e.ThreadID)
		c := a.carrier(carrier)
		c.currentVirtualThreads--
		c.lastActivity = e.Time

	case event.VTPinned:
		carrier := e.CarrierID
		if carrier == event.UnknownCarrier {
			carrier, _ = a.startedCarrier[e.ThreadID]
		}
		c := a.carrier(carrier)
		c.pinnedEvents++
		c.lastActivity = e.Time
	}
}

// carrier must be called with mu held.
func (a *CarrierAnalyzer) carrier(id int64) *carrierStats {
	c, ok := a.carriers[id]
	if !ok {
		c = &carrierStats{}
		a.carriers[id] = c
	}
	return c
}

// CarrierStat is the public view of one carrier's stats.
type CarrierStat struct {
	CarrierID             int64     `json:"carrierId"`
	TotalVirtualThreads   int64     `json:"totalVirtualThreads"`
	CurrentVirtualThreads int64     `json:"currentVirtualThreads"`
	PinnedEvents          int64     `json:"pinnedEvents"`
	LastActivity          time.Time `json:"lastActivity"`
	Utilization           float64   `json:"utilization"`
}

// CarrierAnalysis is the get_analysis() snapshot for carrier utilization.
type CarrierAnalysis struct {
	Carriers []CarrierStat `json:"carriers"`
}

// GetAnalysis returns per-carrier stats with utilization normalized
// against the maximum total across all carriers (a relative metric).
func (a *CarrierAnalyzer) GetAnalysis() CarrierAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	var maxTotal int64
	for _, c := range a.carriers {
		if c.totalVirtualThreads > maxTotal {
			maxTotal = c.totalVirtualThreads
		}
	}

	out := make([]CarrierStat, 0, len(a.carriers))
	for id, c := range a.carriers {
		var util float64
		if maxTotal > 0 {
			util = float64(c.totalVirtualThreads) / float64(maxTotal)
		}
		out = append(out, CarrierStat{
			CarrierID:             id,
			TotalVirtualThreads:   c.totalVirtualThreads,
			CurrentVirtualThreads: c.currentVirtualThreads,
			PinnedEvents:          c.pinnedEvents,
			LastActivity:          c.lastActivity,
			Utilization:           util,
		})
	}
	return CarrierAnalysis{Carriers: out}
}
