package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterPushesBuiltMetricsPeriodically(t *testing.T) {
	var hits atomic.Int64
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotAuth.Store(r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	build := func(now time.Time) []Metric {
		return []Metric{Gauge("argus_test_gauge", "test", now, 1.5)}
	}

	exp := NewExporter(srv.URL, "argus", map[string]string{"X-Test": "v"}, 10*time.Millisecond, build, nil)
	require.NoError(t, exp.Start(context.Background()))
	defer exp.Stop()

	require.Eventually(t, func() bool { return hits.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "v", gotAuth.Load())
}

func TestExporterContinuesAfterErrorStatus(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	build := func(now time.Time) []Metric { return nil }
	exp := NewExporter(srv.URL, "argus", nil, 10*time.Millisecond, build, nil)
	require.NoError(t, exp.Start(context.Background()))
	defer exp.Stop()

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
