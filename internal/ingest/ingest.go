// Package ingest subscribes to the host runtime's named event channels,
// normalizes incoming records into Argus's typed event model with
// fallback field-extraction chains, and offers the result to the
// matching ring buffer. The host's own transport is out of scope (spec.md
// §1); ChannelSource is the contract it must satisfy.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"argus/internal/event"
	"argus/internal/logging"
	"argus/internal/ring"
)

// ErrAlreadyRunning is returned by Start when the engine is already running.
var ErrAlreadyRunning = errors.New("ingest: engine already running")

// ErrNotRunning names the not-running condition. Stop does not return it:
// stopping an engine that is not running is a no-op that returns nil.
var ErrNotRunning = errors.New("ingest: engine not running")

// ErrUnknownFamily names a channel that maps to no known family. The
// engine binds only the channels in its own table, so no function in this
// package returns it.
var ErrUnknownFamily = errors.New("ingest: unknown channel family")

// Rec is a host-supplied raw record: a loosely-typed field bag keyed by
// canonical field name, as the host's transport actually looks (field
// names may drift across host versions, hence the fallback chains below).
type Rec map[string]any

// ChannelSource is the pluggable contract for the host's event transport.
// Subscribe registers handler to be invoked for every record arriving on
// the named channel until the returned cancel func is called or ctx is
// done. Ready is closed once the source confirms the subscription is
// live (used to satisfy the startup readiness latch).
type ChannelSource interface {
	Subscribe(ctx context.Context, channel string, handler func(Rec)) (cancel func(), ready <-chan struct{}, err error)
}

// Rings is the set of per-family ring buffers the engine writes into.
type Rings struct {
	VirtualThread *ring.Buffer[event.VirtualThreadEvent]
	GC            *ring.Buffer[event.GCEvent]
	CPU           *ring.Buffer[event.CPUEvent]
	Allocation    *ring.Buffer[event.AllocationEvent]
	Metaspace     *ring.Buffer[event.MetaspaceEvent]
	ExecutionSample *ring.Buffer[event.ExecutionSampleEvent]
	Contention    *ring.Buffer[event.ContentionEvent]
}

// FamilyConfig is the set of per-family enable flags and thresholds the
// engine needs at construction time.
type FamilyConfig struct {
	GCEnabled           bool
	CPUEnabled          bool
	AllocationEnabled   bool
	AllocationThreshold uint64
	MetaspaceEnabled    bool
	ProfilingEnabled    bool
	ContentionEnabled   bool
	ContentionThresholdMs int
}

// Engine is the ingestion engine: it binds one handler per enabled
// channel, normalizes records, and offers typed events to rings.
type Engine struct {
	source ChannelSource
	rings  Rings
	cfg    FamilyConfig
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	cancelAll []func()

	processed struct {
		mu    sync.Mutex
		count map[string]int64
	}
}

// NewEngine constructs an Engine. logger may be nil (discard).
func NewEngine(source ChannelSource, rings Rings, cfg FamilyConfig, logger *slog.Logger) *Engine {
	e := &Engine{
		source: source,
		rings:  rings,
		cfg:    cfg,
		logger: logging.Default(logger).With("component", "ingest"),
	}
	e.processed.count = make(map[string]int64)
	return e
}

// channel binding table: canonical host channel name -> handler factory.
func (e *Engine) bindings() map[string]func(Rec) {
	m := make(map[string]func(Rec))
	m["VirtualThread.Start"] = e.handleVirtualThreadStart
	m["VirtualThread.End"] = e.handleVirtualThreadEnd
	m["VirtualThread.Pinned"] = e.handleVirtualThreadPinned
	m["VirtualThread.SubmitFailed"] = e.handleVirtualThreadSubmitFailed

	if e.cfg.GCEnabled {
		m["GarbageCollection"] = e.handleGC
	}
	if e.cfg.CPUEnabled {
		m["CPULoad"] = e.handleCPU
	}
	if e.cfg.AllocationEnabled {
		m["ObjectAllocationInNewTLAB"] = e.handleAllocation
	}
	if e.cfg.MetaspaceEnabled {
		m["MetaspaceSummary"] = e.handleMetaspace
	}
	if e.cfg.ProfilingEnabled {
		m["ExecutionSample"] = e.handleExecutionSample
	}
	if e.cfg.ContentionEnabled {
		m["JavaMonitorEnter"] = e.handleContentionEnter
		m["JavaMonitorWait"] = e.handleContentionWait
	}
	return m
}

const defaultReadyTimeout = 5 * time.Second

// Start subscribes to every enabled channel and blocks until all
// subscriptions are confirmed ready or readyTimeout elapses (default 5s
// when zero). Idempotent-unsafe: calling twice without Stop returns
// ErrAlreadyRunning.
func (e *Engine) Start(ctx context.Context, readyTimeout time.Duration) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()

	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}

	bindings := e.bindings()
	readyCh := make(chan error, len(bindings))
	var cancels []func()
	var cancelMu sync.Mutex

	for channel, handler := range bindings {
		channel, handler := channel, handler
		cancel, ready, err := e.source.Subscribe(ctx, channel, handler)
		if err != nil {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			return err
		}
		cancelMu.Lock()
		cancels = append(cancels, cancel)
		cancelMu.Unlock()

		go func() {
			select {
			case <-ready:
				readyCh <- nil
			case <-time.After(readyTimeout):
				readyCh <- context.DeadlineExceeded
			case <-ctx.Done():
				readyCh <- ctx.Err()
			}
		}()
	}

	deadline := time.After(readyTimeout)
	for i := 0; i < len(bindings); i++ {
		select {
		case err := <-readyCh:
			if err != nil {
				e.logger.Warn("channel subscription not ready in time", "error", err)
			}
		case <-deadline:
			e.logger.Warn("startup readiness timeout reached before all channels confirmed")
			i = len(bindings)
		}
	}

	e.mu.Lock()
	e.cancelAll = cancels
	e.mu.Unlock()

	e.logger.Info("ingestion engine started", "channels", len(bindings))
	return nil
}

// Stop cancels every channel subscription and emits a final
// processed-count diagnostic. Idempotent: calling twice is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	cancels := e.cancelAll
	e.cancelAll = nil
	e.running = false
	e.mu.Unlock()

	for _, c := range cancels {
		c()
	}

	e.processed.mu.Lock()
	counts := make(map[string]int64, len(e.processed.count))
	for k, v := range e.processed.count {
		counts[k] = v
	}
	e.processed.mu.Unlock()

	e.logger.Info("ingestion engine stopped", "processedByFamily", counts)
	return nil
}

func (e *Engine) countProcessed(family string) {
	e.processed.mu.Lock()
	e.processed.count[family]++
	e.processed.mu.Unlock()
}
