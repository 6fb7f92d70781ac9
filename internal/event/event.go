// Package event defines the typed, immutable records that flow through
// Argus's ring buffers: virtual-thread lifecycle transitions, GC pauses,
// CPU load samples, allocations, metaspace growth, execution samples, and
// lock contention.
//
// Every event type implements Event so the ring buffer, broadcaster, and
// retention rings can handle them uniformly; analyzers type-switch on the
// concrete type when they need family-specific fields.
package event

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies an event family for routing, metrics, and JSON framing.
type Kind uint8

const (
	KindVirtualThread Kind = iota
	KindGC
	KindCPU
	KindAllocation
	KindMetaspace
	KindExecutionSample
	KindContention
)

func (k Kind) String() string {
	switch k {
	case KindVirtualThread:
		return "virtual_thread"
	case KindGC:
		return "gc"
	case KindCPU:
		return "cpu"
	case KindAllocation:
		return "allocation"
	case KindMetaspace:
		return "metaspace"
	case KindExecutionSample:
		return "execution_sample"
	case KindContention:
		return "contention"
	default:
		return "unknown"
	}
}

// Event is satisfied by every typed event record.
type Event interface {
	// Kind reports the event family.
	Kind() Kind

	// Timestamp returns the monotonic-derived wall-clock instant the event
	// was recorded at the source.
	Timestamp() time.Time

	// MarshalJSON produces the stable on-wire shape documented in spec.md §6.
	MarshalJSON() ([]byte, error)
}

// VirtualThreadTransition distinguishes the four lifecycle signals a host
// runtime can emit for a lightweight thread.
type VirtualThreadTransition uint8

const (
	VTStart VirtualThreadTransition = iota
	VTEnd
	VTPinned
	VTSubmitFailed
)

func (t VirtualThreadTransition) wireName() string {
	switch t {
	case VTStart:
		return "START"
	case VTEnd:
		return "END"
	case VTPinned:
		return "PINNED"
	case VTSubmitFailed:
		return "SUBMIT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// UnknownCarrier is the sentinel stored when a host record carries no
// resolvable carrier-thread id.
const UnknownCarrier int64 = -1

// VirtualThreadEvent is an immutable record of a single virtual-thread
// lifecycle transition.
type VirtualThreadEvent struct {
	Transition    VirtualThreadTransition
	ThreadID      uint64
	ThreadName    string // may be empty
	CarrierID     int64  // UnknownCarrier (-1) if unresolved
	Time          time.Time
	DurationNanos int64  // set for End/Pinned, zero otherwise
	StackTrace    string // set for Pinned, empty otherwise
}

func (e VirtualThreadEvent) Kind() Kind           { return KindVirtualThread }
func (e VirtualThreadEvent) Timestamp() time.Time { return e.Time }

func (e VirtualThreadEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote(e.Transition.wireName()))
	b = appendField(b, false, "threadId", strconv.FormatUint(e.ThreadID, 10))
	if e.ThreadName != "" {
		b = appendField(b, false, "threadName", quote(e.ThreadName))
	}
	if e.CarrierID != UnknownCarrier {
		b = appendField(b, false, "carrierThread", strconv.FormatInt(e.CarrierID, 10))
	}
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	if e.Transition == VTEnd || e.Transition == VTPinned {
		b = appendField(b, false, "duration", strconv.FormatInt(e.DurationNanos, 10))
	}
	if e.Transition == VTPinned && e.StackTrace != "" {
		b = appendField(b, false, "stackTrace", quote(e.StackTrace))
	}
	b = append(b, '}')
	return b, nil
}

// GCVariant distinguishes the shapes a GC event can arrive in.
type GCVariant uint8

const (
	GCPause GCVariant = iota
	GCHeapSummary
	GCCombined
)

// GCEvent is an immutable record of a single garbage-collection
// observation: a pause, a heap-summary sample, or both combined.
type GCEvent struct {
	Variant          GCVariant
	Time             time.Time
	DurationNanos    int64
	Name             string // e.g. "G1 Young Generation"; may be empty
	Cause            string // e.g. "Allocation Failure"; may be empty
	HeapUsedBefore   uint64
	HeapUsedAfter    uint64
	HeapCommitted    uint64
}

func (e GCEvent) Kind() Kind           { return KindGC }
func (e GCEvent) Timestamp() time.Time { return e.Time }

func (e GCEvent) wireEventType() string {
	if e.Variant == GCHeapSummary {
		return "GC_HEAP_SUMMARY"
	}
	return "GC_PAUSE"
}

func (e GCEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("GC_EVENT"))
	b = appendField(b, false, "eventType", quote(e.wireEventType()))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "duration", strconv.FormatInt(e.DurationNanos, 10))
	if e.Name != "" {
		b = appendField(b, false, "gcName", quote(e.Name))
	}
	if e.Cause != "" {
		b = appendField(b, false, "gcCause", quote(e.Cause))
	}
	b = appendField(b, false, "heapUsedBefore", strconv.FormatUint(e.HeapUsedBefore, 10))
	b = appendField(b, false, "heapUsedAfter", strconv.FormatUint(e.HeapUsedAfter, 10))
	b = appendField(b, false, "heapCommitted", strconv.FormatUint(e.HeapCommitted, 10))
	b = append(b, '}')
	return b, nil
}

// CPUEvent is a point-in-time CPU load sample. Ratios are not clamped:
// on multi-core machines JVMUser+JVMSystem may legitimately exceed 1.
type CPUEvent struct {
	Time         time.Time
	JVMUser      float64
	JVMSystem    float64
	MachineTotal float64
}

func (e CPUEvent) Kind() Kind           { return KindCPU }
func (e CPUEvent) Timestamp() time.Time { return e.Time }

func (e CPUEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("CPU_EVENT"))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "jvmUser", strconv.FormatFloat(e.JVMUser, 'f', -1, 64))
	b = appendField(b, false, "jvmSystem", strconv.FormatFloat(e.JVMSystem, 'f', -1, 64))
	b = appendField(b, false, "machineTotal", strconv.FormatFloat(e.MachineTotal, 'f', -1, 64))
	b = append(b, '}')
	return b, nil
}

// AllocationEvent records a single TLAB (or direct) allocation observed
// above the ingestion-time size threshold.
type AllocationEvent struct {
	Time            time.Time
	ClassName       string
	SizeBytes       uint64
	TLABSizeBytes   uint64
}

func (e AllocationEvent) Kind() Kind           { return KindAllocation }
func (e AllocationEvent) Timestamp() time.Time { return e.Time }

func (e AllocationEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("ALLOCATION_EVENT"))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "className", quote(e.ClassName))
	b = appendField(b, false, "allocationSize", strconv.FormatUint(e.SizeBytes, 10))
	b = appendField(b, false, "tlabSize", strconv.FormatUint(e.TLABSizeBytes, 10))
	b = append(b, '}')
	return b, nil
}

// MetaspaceEvent is a point-in-time metaspace/class-loader usage sample.
type MetaspaceEvent struct {
	Time       time.Time
	Used       uint64
	Committed  uint64
	Reserved   uint64
	ClassCount uint64
}

func (e MetaspaceEvent) Kind() Kind           { return KindMetaspace }
func (e MetaspaceEvent) Timestamp() time.Time { return e.Time }

func (e MetaspaceEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("METASPACE_EVENT"))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "used", strconv.FormatUint(e.Used, 10))
	b = appendField(b, false, "committed", strconv.FormatUint(e.Committed, 10))
	b = appendField(b, false, "reserved", strconv.FormatUint(e.Reserved, 10))
	b = appendField(b, false, "classCount", strconv.FormatUint(e.ClassCount, 10))
	b = append(b, '}')
	return b, nil
}

// ExecutionSampleEvent is a single CPU-profiling sample. Ingestion drops
// samples with an empty stack trace before they ever reach the ring.
type ExecutionSampleEvent struct {
	Time       time.Time
	ThreadID   uint64
	ThreadName string
	TopMethod  string
	TopClass   string
	TopLine    int
	StackTrace string // non-empty by construction
}

func (e ExecutionSampleEvent) Kind() Kind           { return KindExecutionSample }
func (e ExecutionSampleEvent) Timestamp() time.Time { return e.Time }

func (e ExecutionSampleEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("EXECUTION_SAMPLE"))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "threadId", strconv.FormatUint(e.ThreadID, 10))
	b = appendField(b, false, "threadName", quote(e.ThreadName))
	b = appendField(b, false, "topMethod", quote(e.TopMethod))
	b = appendField(b, false, "topClass", quote(e.TopClass))
	b = appendField(b, false, "topLine", strconv.Itoa(e.TopLine))
	b = appendField(b, false, "stackTrace", quote(e.StackTrace))
	b = append(b, '}')
	return b, nil
}

// ContentionKind distinguishes a monitor-enter wait from an Object.wait().
type ContentionKind uint8

const (
	ContentionEnter ContentionKind = iota
	ContentionWait
)

// ContentionEvent records a single lock-contention observation.
type ContentionEvent struct {
	Time          time.Time
	ThreadID      uint64
	ThreadName    string
	MonitorClass  string
	DurationNanos int64
	Kind2         ContentionKind // named Kind2 to avoid clashing with Event.Kind()
}

func (e ContentionEvent) Kind() Kind           { return KindContention }
func (e ContentionEvent) Timestamp() time.Time { return e.Time }

func (e ContentionEvent) wireKind() string {
	if e.Kind2 == ContentionWait {
		return "Wait"
	}
	return "Enter"
}

func (e ContentionEvent) MarshalJSON() ([]byte, error) {
	var b []byte
	b = append(b, '{')
	b = appendField(b, true, "type", quote("CONTENTION_EVENT"))
	b = appendField(b, false, "timestamp", quote(formatISONanos(e.Time)))
	b = appendField(b, false, "threadId", strconv.FormatUint(e.ThreadID, 10))
	b = appendField(b, false, "threadName", quote(e.ThreadName))
	b = appendField(b, false, "monitorClass", quote(e.MonitorClass))
	b = appendField(b, false, "duration", strconv.FormatInt(e.DurationNanos, 10))
	b = appendField(b, false, "kind", quote(e.wireKind()))
	b = append(b, '}')
	return b, nil
}

// formatISONanos renders t as an ISO-8601 timestamp with nanosecond
// resolution, the wire format spec.md §6 calls "<ISO-8601-nanos>".
func formatISONanos(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func quote(s string) string {
	return strconv.Quote(s)
}

// appendField appends `"key":value` to b, prefixing a comma unless first is true.
func appendField(b []byte, first bool, key, value string) []byte {
	if !first {
		b = append(b, ',')
	}
	b = append(b, '"')
	b = append(b, key...)
	b = append(b, '"', ':')
	b = append(b, value...)
	return b
}

// GoString implements fmt.GoStringer for debugging/log attribution.
func (k Kind) GoString() string { return fmt.Sprintf("Kind(%s)", k.String()) }
