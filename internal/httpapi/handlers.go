package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"argus/internal/analyzer"
	"argus/internal/event"
	"argus/internal/metrics"
	"argus/internal/threadstate"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"clients": s.deps.Broadcaster.SubscriberCount(),
	})
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	c := s.deps.Broadcaster.Counters()
	writeJSON(w, http.StatusOK, map[string]any{
		"subscribers": s.deps.Broadcaster.SubscriberCount(),
		"counts": map[string]int64{
			"virtualThread":    c.VirtualThread.Load(),
			"gc":               c.GC.Load(),
			"cpu":              c.CPU.Load(),
			"allocation":       c.Allocation.Load(),
			"metaspace":        c.Metaspace.Load(),
			"executionSample":  c.ExecutionSample.Load(),
			"contention":       c.Contention.Load(),
		},
	})
}

func threadEntryJSON(e threadstate.Entry) map[string]any {
	out := map[string]any{
		"threadId":   e.ThreadID,
		"threadName": e.ThreadName,
		"state":      e.State.String(),
		"isPinned":   e.IsPinned,
		"startTime":  e.StartTime,
	}
	if e.CarrierID >= 0 {
		out["carrierThread"] = e.CarrierID
	}
	if !e.EndTime.IsZero() {
		out["endTime"] = e.EndTime
	}
	return out
}

func (s *Server) handleActiveThreads(w http.ResponseWriter, r *http.Request) {
	entries, _ := s.deps.State.Snapshot()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.State == threadstate.Ended {
			continue
		}
		out = append(out, threadEntryJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleThreadDump(w http.ResponseWriter, r *http.Request) {
	entries, counts := s.deps.State.Snapshot()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, threadEntryJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts":  counts,
		"threads": out,
	})
}

// handleThreadRoutes dispatches /threads/{id}/events and /threads/{id}/dump.
func (s *Server) handleThreadRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/threads/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "unknown thread route")
		return
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid thread id")
		return
	}

	switch parts[1] {
	case "events":
		s.handleThreadEvents(w, id)
	case "dump":
		s.handleThreadStackDump(w, id)
	default:
		writeError(w, http.StatusNotFound, "unknown thread route")
	}
}

func (s *Server) handleThreadEvents(w http.ResponseWriter, id uint64) {
	records := s.deps.Retention.ThreadEvents(id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("["))
	for i, r := range records {
		if i > 0 {
			_, _ = w.Write([]byte(","))
		}
		_, _ = w.Write(r.JSON)
	}
	_, _ = w.Write([]byte("]"))
}

// handleThreadStackDump returns the most recently observed stack trace
// for a thread, derived from its retained events (the host only ever
// reports a stack trace alongside a pinning or execution-sample event;
// there is no separate on-demand dump channel).
func (s *Server) handleThreadStackDump(w http.ResponseWriter, id uint64) {
	records := s.deps.Retention.ThreadEvents(id)
	for i := len(records) - 1; i >= 0; i-- {
		switch e := records[i].Event.(type) {
		case event.VirtualThreadEvent:
			if e.StackTrace != "" {
				writeJSON(w, http.StatusOK, map[string]string{"threadId": strconv.FormatUint(id, 10), "stackTrace": e.StackTrace})
				return
			}
		case event.ExecutionSampleEvent:
			if e.StackTrace != "" {
				writeJSON(w, http.StatusOK, map[string]string{"threadId": strconv.FormatUint(id, 10), "stackTrace": e.StackTrace})
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"threadId": strconv.FormatUint(id, 10), "stackTrace": ""})
}

func (s *Server) handlePinningAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Pinning == nil {
		writeJSON(w, http.StatusOK, analyzer.PinningAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Pinning.GetAnalysis())
}

func (s *Server) handleCarrierThreads(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Carrier == nil {
		writeJSON(w, http.StatusOK, analyzer.CarrierAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Carrier.GetAnalysis())
}

func (s *Server) handleGCAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.GC == nil {
		writeJSON(w, http.StatusOK, analyzer.GCAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.GC.GetAnalysis())
}

func (s *Server) handleCPUMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.CPU == nil {
		writeJSON(w, http.StatusOK, analyzer.CPUAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.CPU.GetAnalysis())
}

func (s *Server) handleAllocationAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Allocation == nil {
		writeJSON(w, http.StatusOK, analyzer.AllocationAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Allocation.GetAnalysis())
}

func (s *Server) handleMetaspaceMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Metaspace == nil {
		writeJSON(w, http.StatusOK, analyzer.MetaspaceAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Metaspace.GetAnalysis())
}

func (s *Server) handleMethodProfiling(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Profiling == nil {
		writeJSON(w, http.StatusOK, analyzer.ProfilingAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Profiling.GetAnalysis())
}

func (s *Server) handleContentionAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Contention == nil {
		writeJSON(w, http.StatusOK, analyzer.ContentionAnalysis{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.Contention.GetAnalysis())
}

// handleCorrelations reports the observed GC/CPU/pinning correlations
// plus recommendations evaluated against a high-level metrics snapshot
// assembled from whichever analyzers are currently enabled. Heap growth
// rate has no dedicated tracking point in the data model (GC events
// report heap-used/committed per pause, not a trend), so it is left at
// zero; MEMORY_LEAK_SUSPECTED therefore only fires once a heap-growth
// analyzer is added (see DESIGN.md open question).
func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.Correlation == nil {
		writeJSON(w, http.StatusOK, analyzer.CorrelationAnalysis{})
		return
	}
	analysis := s.deps.Analyzers.Correlation.GetAnalysis()

	var hlm analyzer.HighLevelMetrics
	if s.deps.Analyzers.GC != nil {
		gc := s.deps.Analyzers.GC.GetAnalysis()
		if elapsed := time.Since(s.startedAt); elapsed > 0 {
			hlm.GCOverheadPercent = float64(gc.TotalPauseNs) / float64(elapsed) * 100
		}
	}
	if s.deps.Analyzers.Allocation != nil {
		hlm.AllocationRate = s.deps.Analyzers.Allocation.GetAnalysis().RateBytesPerSec
	}
	if s.deps.Analyzers.Contention != nil {
		for _, h := range s.deps.Analyzers.Contention.GetAnalysis().Hotspots {
			hlm.ContentionTimeNs += h.TotalNs
		}
	}
	if s.deps.Analyzers.Metaspace != nil {
		hlm.MetaspaceGrowthRate = s.deps.Analyzers.Metaspace.GetAnalysis().GrowthPerMinute
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gcCpuCorrelations":     analysis.GCCPUCorrelations,
		"gcPinningCorrelations": analysis.GCPinningCorrelations,
		"recommendations":       s.deps.Analyzers.Correlation.Recommendations(hlm),
	})
}

func (s *Server) handleFlameGraphJSON(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analyzers.FlameGraph == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzers.FlameGraph.Tree())
}

func (s *Server) handleFlameGraphCollapsed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if s.deps.Analyzers.FlameGraph == nil {
		return
	}
	_, _ = w.Write([]byte(s.deps.Analyzers.FlameGraph.Collapsed()))
}

func (s *Server) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	snap := s.buildMetricsSnapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	metrics.WritePrometheus(w, snap)
}

// buildMetricsSnapshot assembles a metrics.Snapshot from whichever
// analyzers are enabled, for /prometheus. The OTLP exporter does not use
// it; internal/system builds the pushed metrics from the same analyzers.
func (s *Server) buildMetricsSnapshot() metrics.Snapshot {
	snap := metrics.Snapshot{
		Counters:        s.deps.Broadcaster.Counters(),
		SubscriberCount: s.deps.Broadcaster.SubscriberCount(),
		Enabled: metrics.Family{
			VirtualThread: s.deps.Analyzers.Pinning != nil || s.deps.Analyzers.Carrier != nil,
			GC:            s.deps.Analyzers.GC != nil,
			CPU:           s.deps.Analyzers.CPU != nil,
			Allocation:    s.deps.Analyzers.Allocation != nil,
			Metaspace:     s.deps.Analyzers.Metaspace != nil,
			Contention:    s.deps.Analyzers.Contention != nil,
		},
	}

	if s.deps.Analyzers.Pinning != nil {
		p := s.deps.Analyzers.Pinning.GetAnalysis()
		snap.Pinning = &metrics.PinningGauges{Total: p.TotalPinnedEvents, Unique: p.UniqueStackTraces}
	}
	if s.deps.Analyzers.Carrier != nil {
		for _, c := range s.deps.Analyzers.Carrier.GetAnalysis().Carriers {
			snap.Carriers = append(snap.Carriers, metrics.CarrierGauge{
				ID:      strconv.FormatInt(c.CarrierID, 10),
				Current: c.CurrentVirtualThreads,
			})
		}
	}
	if s.deps.Analyzers.GC != nil {
		gc := s.deps.Analyzers.GC.GetAnalysis()
		snap.GC = &metrics.GCGauges{Count: gc.EventCount, TotalPauseNs: gc.TotalPauseNs, MaxPauseNs: gc.MaxPauseNs}
	}
	if s.deps.Analyzers.CPU != nil {
		cpu := s.deps.Analyzers.CPU.GetAnalysis()
		snap.CPU = &metrics.CPUGauges{MachineTotal: cpu.PeakMachineTotal, JVMTotal: cpu.PeakJVMTotal}
		if cpu.Current != nil {
			snap.CPU.MachineTotal = cpu.Current.MachineTotal
			snap.CPU.JVMTotal = cpu.Current.JVMUser + cpu.Current.JVMSystem
		}
	}
	if s.deps.Analyzers.Allocation != nil {
		alloc := s.deps.Analyzers.Allocation.GetAnalysis()
		snap.Allocation = &metrics.AllocationGauges{Count: alloc.TotalAllocations, Bytes: alloc.TotalBytes}
	}
	if s.deps.Analyzers.Metaspace != nil {
		ms := s.deps.Analyzers.Metaspace.GetAnalysis()
		if ms.Current != nil {
			snap.Metaspace = &metrics.MetaspaceGauges{Used: ms.Current.Used}
		}
	}
	if s.deps.Analyzers.Contention != nil {
		for _, h := range s.deps.Analyzers.Contention.GetAnalysis().Hotspots {
			snap.Contention = append(snap.Contention, metrics.ContentionGauge{MonitorClass: h.MonitorClass, TotalNs: h.TotalNs})
		}
	}
	return snap
}
