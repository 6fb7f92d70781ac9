package ingest

import (
	"time"

	"argus/internal/event"
)

// extractString tries each field path in order, returning the first
// string value found. Returns def if none match, mirroring the host's
// schema-drift tolerance (spec.md §4.2).
func extractString(r Rec, def string, paths ...string) string {
	for _, p := range paths {
		if v, ok := r[p]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return def
}

// extractInt64 tries each field path, coercing common numeric
// representations (int, int64, float64, uint64) to int64.
func extractInt64(r Rec, def int64, paths ...string) int64 {
	for _, p := range paths {
		if v, ok := r[p]; ok {
			if n, ok := toInt64(v); ok {
				return n
			}
		}
	}
	return def
}

func extractUint64(r Rec, def uint64, paths ...string) uint64 {
	for _, p := range paths {
		if v, ok := r[p]; ok {
			if n, ok := toInt64(v); ok && n >= 0 {
				return uint64(n)
			}
		}
	}
	return def
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func extractFloat64(r Rec, def float64, paths ...string) float64 {
	for _, p := range paths {
		if v, ok := r[p]; ok {
			switch n := v.(type) {
			case float64:
				return n
			case int:
				return float64(n)
			case int64:
				return float64(n)
			}
		}
	}
	return def
}

func extractTime(r Rec, paths ...string) time.Time {
	for _, p := range paths {
		if v, ok := r[p]; ok {
			switch t := v.(type) {
			case time.Time:
				return t
			case int64:
				return time.Unix(0, t)
			}
		}
	}
	return time.Now()
}

const sentinelID = -1
const sentinelString = "Unknown"

func (e *Engine) handleVirtualThreadStart(r Rec) {
	ev := event.VirtualThreadEvent{
		Transition: event.VTStart,
		ThreadID:   extractUint64(r, 0, "threadId", "thread_id", "id"),
		ThreadName: extractString(r, sentinelString, "threadName", "thread_name", "name"),
		CarrierID:  extractInt64(r, sentinelID, "carrierThread", "carrier_thread_id", "carrierId"),
		Time:       extractTime(r, "timestamp", "time", "startTime"),
	}
	e.rings.VirtualThread.Offer(ev)
	e.countProcessed("virtual_thread")
}

func (e *Engine) handleVirtualThreadEnd(r Rec) {
	ev := event.VirtualThreadEvent{
		Transition: event.VTEnd,
		ThreadID:   extractUint64(r, 0, "threadId", "thread_id", "id"),
		ThreadName: extractString(r, "", "threadName", "thread_name", "name"),
		CarrierID:  extractInt64(r, sentinelID, "carrierThread", "carrier_thread_id", "carrierId"),
		Time:       extractTime(r, "timestamp", "time", "endTime"),
		DurationNanos: extractInt64(r, 0, "duration", "durationNanos", "duration_ns"),
	}
	e.rings.VirtualThread.Offer(ev)
	e.countProcessed("virtual_thread")
}

func (e *Engine) handleVirtualThreadPinned(r Rec) {
	ev := event.VirtualThreadEvent{
		Transition: event.VTPinned,
		ThreadID:   extractUint64(r, 0, "threadId", "thread_id", "id"),
		ThreadName: extractString(r, "", "threadName", "thread_name", "name"),
		CarrierID:  extractInt64(r, sentinelID, "carrierThread", "carrier_thread_id", "carrierId"),
		Time:       extractTime(r, "timestamp", "time"),
		DurationNanos: extractInt64(r, 0, "duration", "durationNanos", "duration_ns"),
		StackTrace:    extractString(r, "", "stackTrace", "stack_trace", "stack"),
	}
	e.rings.VirtualThread.Offer(ev)
	e.countProcessed("virtual_thread")
}

func (e *Engine) handleVirtualThreadSubmitFailed(r Rec) {
	ev := event.VirtualThreadEvent{
		Transition: event.VTSubmitFailed,
		ThreadID:   extractUint64(r, 0, "threadId", "thread_id", "id"),
		Time:       extractTime(r, "timestamp", "time"),
	}
	e.rings.VirtualThread.Offer(ev)
	e.countProcessed("virtual_thread")
}

func (e *Engine) handleGC(r Rec) {
	variant := event.GCPause
	switch extractString(r, "", "eventType", "variant") {
	case "GC_HEAP_SUMMARY":
		variant = event.GCHeapSummary
	case "GC_COMBINED":
		variant = event.GCCombined
	}
	ev := event.GCEvent{
		Variant:        variant,
		Time:           extractTime(r, "timestamp", "time"),
		DurationNanos:  extractInt64(r, 0, "duration", "durationNanos", "sumOfPauses", "gcDuration"),
		Name:           extractString(r, "", "gcName", "name"),
		Cause:          extractString(r, "", "gcCause", "cause"),
		HeapUsedBefore: extractUint64(r, 0, "heapUsedBefore", "heap_used_before", "before"),
		HeapUsedAfter:  extractUint64(r, 0, "heapUsedAfter", "heap_used_after", "after"),
		HeapCommitted:  extractUint64(r, 0, "heapCommitted", "heap_committed", "committed"),
	}
	e.rings.GC.Offer(ev)
	e.countProcessed("gc")
}

func (e *Engine) handleCPU(r Rec) {
	ev := event.CPUEvent{
		Time:         extractTime(r, "timestamp", "time"),
		JVMUser:      extractFloat64(r, 0, "jvmUser", "jvm_user"),
		JVMSystem:    extractFloat64(r, 0, "jvmSystem", "jvm_system"),
		MachineTotal: extractFloat64(r, 0, "machineTotal", "machine_total", "machine"),
	}
	e.rings.CPU.Offer(ev)
	e.countProcessed("cpu")
}

// handleAllocation applies the size threshold at ingestion: events below
// the configured threshold are dropped here, never reaching the ring or
// the analyzer (spec.md §4.3.5).
func (e *Engine) handleAllocation(r Rec) {
	size := extractUint64(r, 0, "allocationSize", "size", "weight")
	if size < e.cfg.AllocationThreshold {
		return
	}
	ev := event.AllocationEvent{
		Time:          extractTime(r, "timestamp", "time"),
		ClassName:     extractString(r, sentinelString, "className", "class_name", "objectClass"),
		SizeBytes:     size,
		TLABSizeBytes: extractUint64(r, 0, "tlabSize", "tlab_size"),
	}
	e.rings.Allocation.Offer(ev)
	e.countProcessed("allocation")
}

func (e *Engine) handleMetaspace(r Rec) {
	ev := event.MetaspaceEvent{
		Time:       extractTime(r, "timestamp", "time"),
		Used:       extractUint64(r, 0, "used", "metaspaceUsed"),
		Committed:  extractUint64(r, 0, "committed", "metaspaceCommitted"),
		Reserved:   extractUint64(r, 0, "reserved", "metaspaceReserved"),
		ClassCount: extractUint64(r, 0, "classCount", "class_count"),
	}
	e.rings.Metaspace.Offer(ev)
	e.countProcessed("metaspace")
}

// handleExecutionSample drops samples with no resolvable stack trace, per
// spec.md §3's "empty samples are dropped at ingestion" rule.
func (e *Engine) handleExecutionSample(r Rec) {
	stack := extractString(r, "", "stackTrace", "stack_trace", "stack")
	if stack == "" {
		return
	}
	ev := event.ExecutionSampleEvent{
		Time:       extractTime(r, "timestamp", "time"),
		ThreadID:   extractUint64(r, 0, "threadId", "thread_id"),
		ThreadName: extractString(r, sentinelString, "threadName", "thread_name"),
		TopMethod:  extractString(r, "", "topMethod", "method"),
		TopClass:   extractString(r, "", "topClass", "class"),
		TopLine:    int(extractInt64(r, 0, "topLine", "line")),
		StackTrace: stack,
	}
	e.rings.ExecutionSample.Offer(ev)
	e.countProcessed("execution_sample")
}

func (e *Engine) handleContentionEnter(r Rec) {
	e.handleContention(r, event.ContentionEnter)
}

func (e *Engine) handleContentionWait(r Rec) {
	e.handleContention(r, event.ContentionWait)
}

func (e *Engine) handleContention(r Rec, kind event.ContentionKind) {
	durationNanos := extractInt64(r, 0, "duration", "durationNanos")
	thresholdNanos := int64(e.cfg.ContentionThresholdMs) * int64(time.Millisecond)
	if durationNanos < thresholdNanos {
		return
	}
	ev := event.ContentionEvent{
		Time:          extractTime(r, "timestamp", "time"),
		ThreadID:      extractUint64(r, 0, "threadId", "thread_id"),
		ThreadName:    extractString(r, sentinelString, "threadName", "thread_name"),
		MonitorClass:  extractString(r, sentinelString, "monitorClass", "monitor_class"),
		DurationNanos: durationNanos,
		Kind2:         kind,
	}
	e.rings.Contention.Offer(ev)
	e.countProcessed("contention")
}
