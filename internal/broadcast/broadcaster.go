// Package broadcast implements the two independent periodic ticks that
// drive Argus's data plane: the event tick drains every ring buffer,
// updates analyzers and retention, and multicasts serialized events to
// subscribers; the state tick detects thread-state changes and
// multicasts a full snapshot. Both run on github.com/go-co-op/gocron/v2
// DurationJobs with WithSingletonMode so a slow tick never overlaps
// itself.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"argus/internal/analyzer"
	"argus/internal/event"
	"argus/internal/ingest"
	"argus/internal/logging"
	"argus/internal/retention"
	"argus/internal/threadstate"
)

// ErrAlreadyRunning is returned by Start on a running Broadcaster.
var ErrAlreadyRunning = errors.New("broadcast: already running")

const (
	defaultEventTick = 10 * time.Millisecond
	defaultStateTick = 100 * time.Millisecond
)

// Analyzers bundles every analyzer the broadcaster dispatches events to.
// A nil field means that family is disabled; Record/correlation calls
// for it are skipped entirely.
type Analyzers struct {
	Pinning     *analyzer.PinningAnalyzer
	Carrier     *analyzer.CarrierAnalyzer
	GC          *analyzer.GCAnalyzer
	CPU         *analyzer.CPUAnalyzer
	Allocation  *analyzer.AllocationAnalyzer
	Metaspace   *analyzer.MetaspaceAnalyzer
	Profiling   *analyzer.ProfilingAnalyzer
	FlameGraph  *analyzer.FlameGraphAnalyzer
	Contention  *analyzer.ContentionAnalyzer
	Correlation *analyzer.CorrelationAnalyzer
}

// Counters holds atomic per-family event counts for metrics exposition.
type Counters struct {
	VirtualThread atomic.Int64
	GC            atomic.Int64
	CPU           atomic.Int64
	Allocation    atomic.Int64
	Metaspace     atomic.Int64
	ExecutionSample atomic.Int64
	Contention    atomic.Int64
}

// Broadcaster owns the event-tick and state-tick schedulers.
type Broadcaster struct {
	rings     ingest.Rings
	analyzers Analyzers
	state     *threadstate.Manager
	retention *retention.Store
	subs      *subscriberSet
	counters  Counters
	logger    *slog.Logger

	eventTickInterval time.Duration
	stateTickInterval time.Duration

	mu        sync.Mutex
	running   bool
	scheduler gocron.Scheduler
}

// New constructs a Broadcaster. eventTick/stateTick default to 10ms/100ms
// when zero. logger may be nil (discard).
func New(rings ingest.Rings, analyzers Analyzers, state *threadstate.Manager, store *retention.Store, eventTick, stateTick time.Duration, logger *slog.Logger) *Broadcaster {
	if eventTick <= 0 {
		eventTick = defaultEventTick
	}
	if stateTick <= 0 {
		stateTick = defaultStateTick
	}
	return &Broadcaster{
		rings:             rings,
		analyzers:         analyzers,
		state:             state,
		retention:         store,
		subs:              newSubscriberSet(),
		eventTickInterval: eventTick,
		stateTickInterval: stateTick,
		logger:            logging.Default(logger).With("component", "broadcaster"),
	}
}

// Subscribe registers sub and immediately hands the caller the retained
// window (recent events) plus the current state snapshot, so they can be
// replayed before any new post-connect events arrive (spec.md §8).
func (b *Broadcaster) Subscribe(sub Subscriber) (recent []retention.Record, state []threadstate.Entry, counts threadstate.Counts) {
	b.subs.add(sub)
	recent = b.retention.Recent()
	state, counts = b.state.Snapshot()
	return recent, state, counts
}

// Unsubscribe removes sub, e.g. on a received close frame.
func (b *Broadcaster) Unsubscribe(id string) {
	b.subs.remove(id)
}

// SubscriberCount reports the current number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	return b.subs.count()
}

// Counters exposes the per-family atomic counters for metrics exposition.
func (b *Broadcaster) Counters() *Counters {
	return &b.counters
}

// Start launches both schedulers. Returns ErrAlreadyRunning if already started.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(b.eventTickInterval),
		gocron.NewTask(b.eventTick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(b.stateTickInterval),
		gocron.NewTask(b.stateTick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	sched.Start()
	b.scheduler = sched
	b.running = true
	b.logger.Info("broadcaster started", "eventTick", b.eventTickInterval, "stateTick", b.stateTickInterval)
	return nil
}

// Stop shuts both schedulers down with gocron's own bounded wait.
func (b *Broadcaster) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.running = false
	err := b.scheduler.Shutdown()
	b.logger.Info("broadcaster stopped")
	return err
}

// eventTick drains every ring buffer in turn, updating retention,
// metrics, analyzers, and thread state, then multicasts each drained
// event's JSON to every subscriber in drain order.
func (b *Broadcaster) eventTick() {
	b.drainVirtualThread()
	b.drainGC()
	b.drainCPU()
	b.drainAllocation()
	b.drainMetaspace()
	b.drainExecutionSample()
	b.drainContention()
}

func (b *Broadcaster) publish(e event.Event, threadID uint64, hasThread bool) {
	j, err := e.MarshalJSON()
	if err != nil {
		b.logger.Error("event marshal failed", "kind", e.Kind().String(), "error", err)
		return
	}
	b.retention.Append(retention.Record{Event: e, JSON: j}, threadID, hasThread)
	b.subs.multicast(j, func(s Subscriber) {
		b.logger.Debug("evicted slow subscriber", "id", s.ID())
	})
}

func (b *Broadcaster) drainVirtualThread() {
	if b.rings.VirtualThread == nil {
		return
	}
	for _, e := range b.rings.VirtualThread.Drain() {
		b.counters.VirtualThread.Add(1)
		b.state.Apply(e)
		if b.analyzers.Carrier != nil {
			b.analyzers.Carrier.Record(e)
		}
		if e.Transition == event.VTPinned {
			if b.analyzers.Pinning != nil && e.StackTrace != "" {
				b.analyzers.Pinning.Record(e.StackTrace)
			}
			if b.analyzers.Correlation != nil {
				b.analyzers.Correlation.RecordPinning(e.Time, analyzer.TopFrame(e.StackTrace))
			}
		}
		b.publish(e, e.ThreadID, true)
	}
}

func (b *Broadcaster) drainGC() {
	if b.rings.GC == nil {
		return
	}
	for _, e := range b.rings.GC.Drain() {
		b.counters.GC.Add(1)
		if b.analyzers.GC != nil {
			b.analyzers.GC.Record(e)
		}
		if b.analyzers.Correlation != nil {
			b.analyzers.Correlation.RecordGC(e)
		}
		b.publish(e, 0, false)
	}
}

func (b *Broadcaster) drainCPU() {
	if b.rings.CPU == nil {
		return
	}
	for _, e := range b.rings.CPU.Drain() {
		b.counters.CPU.Add(1)
		if b.analyzers.CPU != nil {
			b.analyzers.CPU.Record(e)
		}
		if b.analyzers.Correlation != nil {
			b.analyzers.Correlation.RecordCPU(e)
		}
		b.publish(e, 0, false)
	}
}

func (b *Broadcaster) drainAllocation() {
	if b.rings.Allocation == nil {
		return
	}
	for _, e := range b.rings.Allocation.Drain() {
		b.counters.Allocation.Add(1)
		if b.analyzers.Allocation != nil {
			b.analyzers.Allocation.Record(e)
		}
		b.publish(e, 0, false)
	}
}

func (b *Broadcaster) drainMetaspace() {
	if b.rings.Metaspace == nil {
		return
	}
	for _, e := range b.rings.Metaspace.Drain() {
		b.counters.Metaspace.Add(1)
		if b.analyzers.Metaspace != nil {
			b.analyzers.Metaspace.Record(e)
		}
		b.publish(e, 0, false)
	}
}

func (b *Broadcaster) drainExecutionSample() {
	if b.rings.ExecutionSample == nil {
		return
	}
	for _, e := range b.rings.ExecutionSample.Drain() {
		b.counters.ExecutionSample.Add(1)
		if b.analyzers.Profiling != nil {
			b.analyzers.Profiling.Record(e)
		}
		if b.analyzers.FlameGraph != nil {
			b.analyzers.FlameGraph.Record(e.StackTrace)
		}
		b.publish(e, e.ThreadID, true)
	}
}

func (b *Broadcaster) drainContention() {
	if b.rings.Contention == nil {
		return
	}
	for _, e := range b.rings.Contention.Drain() {
		b.counters.Contention.Add(1)
		if b.analyzers.Contention != nil {
			b.analyzers.Contention.Record(e)
		}
		b.publish(e, e.ThreadID, true)
	}
}

// stateTick runs cleanup then checks for changes, multicasting a full
// snapshot only when something changed since the last tick.
func (b *Broadcaster) stateTick() {
	b.state.Cleanup(time.Now())
	if !b.state.HasStateChanged() {
		return
	}
	entries, counts := b.state.Snapshot()
	msg := marshalStateUpdate(entries, counts)
	b.subs.multicast(msg, nil)
}
