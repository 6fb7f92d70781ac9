package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/analyzer"
	"argus/internal/broadcast"
	"argus/internal/ingest"
	"argus/internal/retention"
	"argus/internal/threadstate"
)

func newTestServer(t *testing.T) (*Server, broadcast.Analyzers) {
	t.Helper()

	rings := ingest.Rings{}
	analyzers := broadcast.Analyzers{
		Pinning:     analyzer.NewPinningAnalyzer(),
		Carrier:     analyzer.NewCarrierAnalyzer(),
		GC:          analyzer.NewGCAnalyzer(),
		Correlation: analyzer.NewCorrelationAnalyzer(),
	}
	state := threadstate.NewManager(0)
	store := retention.NewStore(0, 0, 0)
	bcast := broadcast.New(rings, analyzers, state, store, 5*time.Millisecond, 5*time.Millisecond, nil)

	deps := Deps{
		Broadcaster: bcast,
		Analyzers:   analyzers,
		State:       state,
		Retention:   store,
		Logger:      nil,
	}
	return NewServer(":0", deps, nil), analyzers
}

func TestHandleHealthReportsSubscriberCount(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}

func TestHandlePinningAnalysisReflectsRecordedStacks(t *testing.T) {
	s, analyzers := newTestServer(t)
	for i := 0; i < 5; i++ {
		analyzers.Pinning.Record("at a.X.m(1)\nat a.Y.n(2)")
	}

	req := httptest.NewRequest(http.MethodGet, "/pinning-analysis", nil)
	rec := httptest.NewRecorder()
	s.handlePinningAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var analysis analyzer.PinningAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.EqualValues(t, 5, analysis.TotalPinnedEvents)
	assert.Equal(t, 1, analysis.UniqueStackTraces)
	require.Len(t, analysis.Hotspots, 1)
	assert.Equal(t, 100.0, analysis.Hotspots[0].Percentage)
}

func TestHandleActiveThreadsExcludesEnded(t *testing.T) {
	s, _ := newTestServer(t)
	now := time.Now()
	s.deps.State.Start(1, "t1", 0, now)
	s.deps.State.Start(2, "t2", 0, now)
	s.deps.State.End(2, now)

	req := httptest.NewRequest(http.MethodGet, "/active-threads", nil)
	rec := httptest.NewRecorder()
	s.handleActiveThreads(rec, req)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.EqualValues(t, 1, out[0]["threadId"])
}

func TestHandleThreadRoutesRejectsMalformedID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/threads/not-a-number/events", nil)
	rec := httptest.NewRecorder()
	s.handleThreadRoutes(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePrometheusOmitsDisabledFamilies(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/prometheus", nil)
	rec := httptest.NewRecorder()
	s.handlePrometheus(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "argus_virtual_thread_events_total")
	assert.NotContains(t, body, "argus_allocated_bytes_total")
}
