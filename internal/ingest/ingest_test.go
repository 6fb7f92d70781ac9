package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/event"
	"argus/internal/ring"
)

// fakeSource is a test double for ChannelSource: it lets the test drive
// handlers directly and confirms readiness immediately.
type fakeSource struct {
	mu       sync.Mutex
	handlers map[string]func(Rec)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string]func(Rec))}
}

func (f *fakeSource) Subscribe(ctx context.Context, channel string, handler func(Rec)) (func(), <-chan struct{}, error) {
	f.mu.Lock()
	f.handlers[channel] = handler
	f.mu.Unlock()

	ready := make(chan struct{})
	close(ready)
	return func() {
		f.mu.Lock()
		delete(f.handlers, channel)
		f.mu.Unlock()
	}, ready, nil
}

func (f *fakeSource) emit(channel string, r Rec) {
	f.mu.Lock()
	h := f.handlers[channel]
	f.mu.Unlock()
	if h != nil {
		h(r)
	}
}

func newTestRings() Rings {
	return Rings{
		VirtualThread:   ring.New[event.VirtualThreadEvent](64),
		GC:              ring.New[event.GCEvent](64),
		CPU:             ring.New[event.CPUEvent](64),
		Allocation:      ring.New[event.AllocationEvent](64),
		Metaspace:       ring.New[event.MetaspaceEvent](64),
		ExecutionSample: ring.New[event.ExecutionSampleEvent](64),
		Contention:      ring.New[event.ContentionEvent](64),
	}
}

func TestStartSubscribesOnlyEnabledFamilies(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	cfg := FamilyConfig{GCEnabled: true} // CPU, allocation, etc. disabled
	eng := NewEngine(src, rings, cfg, nil)

	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	src.mu.Lock()
	_, hasGC := src.handlers["GarbageCollection"]
	_, hasCPU := src.handlers["CPULoad"]
	src.mu.Unlock()
	assert.True(t, hasGC)
	assert.False(t, hasCPU)
}

func TestAllocationThresholdScenario(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	cfg := FamilyConfig{AllocationEnabled: true, AllocationThreshold: 1 << 20}
	eng := NewEngine(src, rings, cfg, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	src.emit("ObjectAllocationInNewTLAB", Rec{"allocationSize": uint64(512 * 1024), "className": "A"})
	src.emit("ObjectAllocationInNewTLAB", Rec{"allocationSize": uint64(2 * 1024 * 1024), "className": "B"})

	drained := rings.Allocation.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "B", drained[0].ClassName)
}

func TestExecutionSampleEmptyStackDropped(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	cfg := FamilyConfig{ProfilingEnabled: true}
	eng := NewEngine(src, rings, cfg, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	src.emit("ExecutionSample", Rec{"stackTrace": ""})
	src.emit("ExecutionSample", Rec{"stackTrace": "at a.B.c(1)"})

	drained := rings.ExecutionSample.Drain()
	require.Len(t, drained, 1)
}

func TestFieldExtractionFallbackChain(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	eng := NewEngine(src, rings, FamilyConfig{}, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	// Uses the snake_case fallback instead of the primary camelCase field.
	src.emit("VirtualThread.Start", Rec{"thread_id": uint64(42), "name": "w"})

	drained := rings.VirtualThread.Drain()
	require.Len(t, drained, 1)
	assert.EqualValues(t, 42, drained[0].ThreadID)
	assert.Equal(t, "w", drained[0].ThreadName)
}

func TestFieldExtractionMissUsesSentinel(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	eng := NewEngine(src, rings, FamilyConfig{}, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	src.emit("VirtualThread.Start", Rec{"threadId": uint64(1)})

	drained := rings.VirtualThread.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, int64(-1), drained[0].CarrierID)
	assert.Equal(t, "Unknown", drained[0].ThreadName)
}

func TestStopIsIdempotent(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	eng := NewEngine(src, rings, FamilyConfig{}, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	require.NoError(t, eng.Stop())
	require.NoError(t, eng.Stop())
}

func TestStartTwiceReturnsErrAlreadyRunning(t *testing.T) {
	src := newFakeSource()
	rings := newTestRings()
	eng := NewEngine(src, rings, FamilyConfig{}, nil)
	require.NoError(t, eng.Start(context.Background(), time.Second))
	defer eng.Stop()

	assert.ErrorIs(t, eng.Start(context.Background(), time.Second), ErrAlreadyRunning)
}
