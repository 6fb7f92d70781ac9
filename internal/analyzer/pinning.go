package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// softCapPinning is the default unique-trace soft cap; eviction kicks in
// above 2x this when entries with count<=1 are pruned.
const softCapPinning = 100

type pinningHotspot struct {
	fullStack string
	topFrame  string
	count     atomic.Int64
}

// PinningAnalyzer groups pinned virtual-thread events by a digest of
// their stack trace and tracks the top offenders.
type PinningAnalyzer struct {
	total atomic.Int64

	mu       sync.Mutex
	hotspots map[string]*pinningHotspot
}

// NewPinningAnalyzer constructs an empty PinningAnalyzer.
func NewPinningAnalyzer() *PinningAnalyzer {
	return &PinningAnalyzer{hotspots: make(map[string]*pinningHotspot)}
}

// Record ingests one pinned-thread stack trace.
func (a *PinningAnalyzer) Record(stackTrace string) {
	a.total.Add(1)
	digest := stackDigest(stackTrace)

	a.mu.Lock()
	h, ok := a.hotspots[digest]
	if !ok {
		h = &pinningHotspot{fullStack: stackTrace, topFrame: TopFrame(stackTrace)}
		a.hotspots[digest] = h
	}
	h.count.Add(1)

	if len(a.hotspots) > softCapPinning*2 {
		for k, v := range a.hotspots {
			if v.count.Load() <= 1 {
				delete(a.hotspots, k)
			}
		}
	}
	a.mu.Unlock()
}

// stackDigest returns a 16-hex-char digest of a stack trace string.
func stackDigest(stack string) string {
	sum := sha256.Sum256([]byte(stack))
	return hex.EncodeToString(sum[:])[:16]
}

// TopFrame extracts the first "at <frame>" line of a stack trace.
func TopFrame(stack string) string {
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "at "); ok {
			return after
		}
	}
	return ""
}

// PinningHotspot is one ranked entry in a pinning analysis.
type PinningHotspot struct {
	Rank       int     `json:"rank"`
	Digest     string  `json:"digest"`
	TopFrame   string  `json:"topFrame"`
	FullStack  string  `json:"fullStack"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PinningAnalysis is the get_analysis() snapshot for pinning hotspots.
type PinningAnalysis struct {
	TotalPinnedEvents int64            `json:"totalPinnedEvents"`
	UniqueStackTraces int              `json:"uniqueStackTraces"`
	Hotspots          []PinningHotspot `json:"hotspots"`
}

// GetAnalysis returns the current pinning snapshot, top 10 by count.
func (a *PinningAnalyzer) GetAnalysis() PinningAnalysis {
	total := a.total.Load()

	a.mu.Lock()
	type kv struct {
		digest string
		h      *pinningHotspot
	}
	all := make([]kv, 0, len(a.hotspots))
	for k, v := range a.hotspots {
		all = append(all, kv{k, v})
	}
	unique := len(a.hotspots)
	a.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].h.count.Load() > all[j].h.count.Load()
	})
	if len(all) > 10 {
		all = all[:10]
	}

	hotspots := make([]PinningHotspot, 0, len(all))
	for i, e := range all {
		count := e.h.count.Load()
		var pct float64
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		hotspots = append(hotspots, PinningHotspot{
			Rank:       i + 1,
			Digest:     e.digest,
			TopFrame:   e.h.topFrame,
			FullStack:  e.h.fullStack,
			Count:      count,
			Percentage: pct,
		})
	}

	return PinningAnalysis{
		TotalPinnedEvents: total,
		UniqueStackTraces: unique,
		Hotspots:          hotspots,
	}
}
