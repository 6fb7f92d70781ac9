package broadcast

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/analyzer"
	"argus/internal/event"
	"argus/internal/ingest"
	"argus/internal/retention"
	"argus/internal/ring"
	"argus/internal/threadstate"
)

type fakeSub struct {
	id string

	mu  sync.Mutex
	got [][]byte
}

func newFakeSub(id string) *fakeSub { return &fakeSub{id: id} }

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(msg))
	copy(cp, msg)
	f.got = append(f.got, cp)
	return nil
}

func (f *fakeSub) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.got))
	copy(out, f.got)
	return out
}

func newTestBroadcaster(t *testing.T) (*Broadcaster, ingest.Rings) {
	t.Helper()
	rings := ingest.Rings{
		VirtualThread:   ring.New[event.VirtualThreadEvent](64),
		GC:              ring.New[event.GCEvent](64),
		CPU:             ring.New[event.CPUEvent](64),
		Allocation:      ring.New[event.AllocationEvent](64),
		Metaspace:       ring.New[event.MetaspaceEvent](64),
		ExecutionSample: ring.New[event.ExecutionSampleEvent](64),
		Contention:      ring.New[event.ContentionEvent](64),
	}
	analyzers := Analyzers{
		Pinning:     analyzer.NewPinningAnalyzer(),
		Carrier:     analyzer.NewCarrierAnalyzer(),
		GC:          analyzer.NewGCAnalyzer(),
		CPU:         analyzer.NewCPUAnalyzer(),
		Correlation: analyzer.NewCorrelationAnalyzer(),
	}
	state := threadstate.NewManager(3 * time.Second)
	store := retention.NewStore(100, 1000, 1000)
	b := New(rings, analyzers, state, store, 5*time.Millisecond, 20*time.Millisecond, nil)
	return b, rings
}

func TestBroadcasterTwoSubscribersReceiveEqualStreams(t *testing.T) {
	b, rings := newTestBroadcaster(t)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	s1, s2 := newFakeSub("s1"), newFakeSub("s2")
	b.Subscribe(s1)
	b.Subscribe(s2)

	rings.GC.Offer(event.GCEvent{Time: time.Now(), DurationNanos: 5})
	rings.GC.Offer(event.GCEvent{Time: time.Now(), DurationNanos: 7})

	require.Eventually(t, func() bool {
		return len(s1.messages()) >= 2 && len(s2.messages()) >= 2
	}, time.Second, time.Millisecond)

	m1, m2 := s1.messages(), s2.messages()
	require.Equal(t, len(m1), len(m2))
	for i := range m1 {
		assert.Equal(t, string(m1[i]), string(m2[i]))
	}
}

func TestNewSubscriberReceivesRetainedWindowBeforeNewEvents(t *testing.T) {
	b, rings := newTestBroadcaster(t)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	rings.GC.Offer(event.GCEvent{Time: time.Now(), DurationNanos: 1})
	require.Eventually(t, func() bool {
		return len(b.retention.Recent()) == 1
	}, time.Second, time.Millisecond)

	recent, _, _ := b.Subscribe(newFakeSub("late"))
	assert.Len(t, recent, 1)
}

func TestStateTickBroadcastsOnPinning(t *testing.T) {
	b, rings := newTestBroadcaster(t)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	sub := newFakeSub("s1")
	b.Subscribe(sub)

	t0 := time.Now()
	rings.VirtualThread.Offer(event.VirtualThreadEvent{Transition: event.VTStart, ThreadID: 1, Time: t0.Add(5 * time.Millisecond)})
	rings.VirtualThread.Offer(event.VirtualThreadEvent{Transition: event.VTPinned, ThreadID: 1, Time: t0.Add(50 * time.Millisecond)})

	require.Eventually(t, func() bool {
		entries, _ := b.state.Snapshot()
		for _, e := range entries {
			if e.ThreadID == 1 && e.State == threadstate.Pinned {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, m := range sub.messages() {
			s := string(m)
			if strings.Contains(s, `"THREAD_STATE_UPDATE"`) && strings.Contains(s, `{"threadId":1,`) && strings.Contains(s, `"state":"PINNED"`) {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestSlowSubscriberEvictedOnSendError(t *testing.T) {
	b, rings := newTestBroadcaster(t)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	errSub := &erroringSub{id: "bad"}
	b.Subscribe(errSub)
	assert.Equal(t, 1, b.SubscriberCount())

	rings.GC.Offer(event.GCEvent{Time: time.Now()})

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, time.Millisecond)
}

type erroringSub struct{ id string }

func (e *erroringSub) ID() string            { return e.id }
func (e *erroringSub) Send(_ []byte) error   { return assert.AnError }
