// Package metrics implements Argus's two exposition surfaces: a
// pull-based Prometheus text document and a periodic OTLP-style JSON
// push exporter, both built by hand from the broadcaster's and
// analyzers' current snapshots rather than through a metrics SDK.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"argus/internal/broadcast"
)

// Family enumerates which event families currently contribute metrics;
// disabled families contribute nothing (spec.md §4.6).
type Family struct {
	VirtualThread bool
	GC            bool
	CPU           bool
	Allocation    bool
	Metaspace     bool
	Contention    bool
}

// PinningGauges, CarrierGauge, ... are the minimal gauge inputs
// WritePrometheus needs, populated by the caller from each analyzer's
// GetAnalysis() snapshot. Kept here rather than imported from
// internal/analyzer so metrics has no compile-time coupling to
// analyzer-internal result shapes beyond what it actually renders.
type PinningGauges struct {
	Total  int64
	Unique int
}

type CarrierGauge struct {
	ID      string
	Current int64
}

type GCGauges struct {
	Count        int64
	TotalPauseNs int64
	MaxPauseNs   int64
}

type CPUGauges struct {
	MachineTotal float64
	JVMTotal     float64
}

type AllocationGauges struct {
	Count int64
	Bytes uint64
}

type MetaspaceGauges struct {
	Used uint64
}

type ContentionGauge struct {
	MonitorClass string
	TotalNs      int64
}

// Snapshot bundles every input WritePrometheus needs for one render.
type Snapshot struct {
	Counters        *broadcast.Counters
	SubscriberCount int
	Enabled         Family
	Pinning         *PinningGauges
	Carriers        []CarrierGauge
	GC              *GCGauges
	CPU             *CPUGauges
	Allocation      *AllocationGauges
	Metaspace       *MetaspaceGauges
	Contention      []ContentionGauge
}

// WritePrometheus renders the text exposition format to w. Only families
// marked enabled in s.Enabled contribute metric lines.
func WritePrometheus(w io.Writer, s Snapshot) {
	writeHelpType(w, "argus_subscribers", "Currently connected WebSocket subscribers", "gauge")
	fmt.Fprintf(w, "argus_subscribers %d\n", s.SubscriberCount)

	if s.Enabled.VirtualThread {
		writeHelpType(w, "argus_virtual_thread_events_total", "Total virtual-thread lifecycle events observed", "counter")
		fmt.Fprintf(w, "argus_virtual_thread_events_total %d\n", s.Counters.VirtualThread.Load())
		if s.Pinning != nil {
			writeHelpType(w, "argus_pinning_events_total", "Total pinning events observed", "counter")
			fmt.Fprintf(w, "argus_pinning_events_total %d\n", s.Pinning.Total)
			writeHelpType(w, "argus_pinning_unique_stacks", "Unique pinned stack traces currently tracked", "gauge")
			fmt.Fprintf(w, "argus_pinning_unique_stacks %d\n", s.Pinning.Unique)
		}
		if len(s.Carriers) > 0 {
			writeHelpType(w, "argus_carrier_virtual_threads_current", "Current virtual threads mounted on a carrier", "gauge")
			for _, c := range s.Carriers {
				fmt.Fprintf(w, "argus_carrier_virtual_threads_current{carrier=\"%s\"} %d\n", escapeLabel(c.ID), c.Current)
			}
		}
	}

	if s.Enabled.GC && s.GC != nil {
		writeHelpType(w, "argus_gc_events_total", "Total GC events observed", "counter")
		fmt.Fprintf(w, "argus_gc_events_total %d\n", s.GC.Count)
		writeHelpType(w, "argus_gc_pause_time_seconds_total", "Cumulative GC pause time in seconds", "counter")
		fmt.Fprintf(w, "argus_gc_pause_time_seconds_total %f\n", float64(s.GC.TotalPauseNs)/1e9)
		writeHelpType(w, "argus_gc_pause_time_seconds_max", "Maximum single GC pause observed in seconds", "gauge")
		fmt.Fprintf(w, "argus_gc_pause_time_seconds_max %f\n", float64(s.GC.MaxPauseNs)/1e9)
	}

	if s.Enabled.CPU && s.CPU != nil {
		writeHelpType(w, "argus_cpu_machine_total", "Most recent machine-wide CPU load sample", "gauge")
		fmt.Fprintf(w, "argus_cpu_machine_total %f\n", s.CPU.MachineTotal)
		writeHelpType(w, "argus_cpu_jvm_total", "Most recent JVM-attributed CPU load sample", "gauge")
		fmt.Fprintf(w, "argus_cpu_jvm_total %f\n", s.CPU.JVMTotal)
	}

	if s.Enabled.Allocation && s.Allocation != nil {
		writeHelpType(w, "argus_allocations_total", "Total allocations observed above threshold", "counter")
		fmt.Fprintf(w, "argus_allocations_total %d\n", s.Allocation.Count)
		writeHelpType(w, "argus_allocated_bytes_total", "Total bytes allocated above threshold", "counter")
		fmt.Fprintf(w, "argus_allocated_bytes_total %d\n", s.Allocation.Bytes)
	}

	if s.Enabled.Metaspace && s.Metaspace != nil {
		writeHelpType(w, "argus_metaspace_used_bytes", "Current metaspace usage in bytes", "gauge")
		fmt.Fprintf(w, "argus_metaspace_used_bytes %d\n", s.Metaspace.Used)
	}

	if s.Enabled.Contention && len(s.Contention) > 0 {
		writeHelpType(w, "argus_contention_time_seconds_total", "Cumulative lock-contention time per monitor class", "counter")
		for _, c := range s.Contention {
			fmt.Fprintf(w, "argus_contention_time_seconds_total{monitor_class=\"%s\"} %f\n", escapeLabel(c.MonitorClass), float64(c.TotalNs)/1e9)
		}
	}
}

func writeHelpType(w io.Writer, name, help, typ string) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
}

// escapeLabel escapes backslash, quote, and newline per the Prometheus
// text exposition format.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
