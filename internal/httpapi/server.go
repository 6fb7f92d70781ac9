// Package httpapi exposes Argus's single listening port: the
// WebSocket event stream, the JSON query endpoints over analyzer
// snapshots, the Prometheus text endpoint, the gzip-compressed export
// download, and the bundled dashboard assets.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"argus/internal/broadcast"
	"argus/internal/logging"
	"argus/internal/retention"
	"argus/internal/threadstate"
)

// Analyzers bundles read-only analyzer accessors the HTTP handlers query.
// A nil field means that family is disabled and its route returns an
// empty/omitted result rather than erroring.
type Analyzers = broadcast.Analyzers

// Deps is everything the HTTP surface needs, assembled once by the
// System at startup and never mutated afterward.
type Deps struct {
	Broadcaster *broadcast.Broadcaster
	Analyzers   Analyzers
	State       *threadstate.Manager
	Retention   *retention.Store
	Logger      *slog.Logger

	// PrometheusEnabled gates the /prometheus route. Defaults to false
	// (zero value); callers that want the endpoint set it explicitly.
	PrometheusEnabled bool
}

// Server owns the HTTP listener and route table.
type Server struct {
	deps      Deps
	mux       *http.ServeMux
	logger    *slog.Logger
	srv       *http.Server
	startedAt time.Time
}

// NewServer builds the full route table over deps. assets may be nil in
// dev builds with no embedded dashboard (frontend.Handler returns nil).
func NewServer(addr string, deps Deps, assets http.Handler) *Server {
	s := &Server{
		deps:      deps,
		mux:       http.NewServeMux(),
		logger:    logging.Default(deps.Logger).With("component", "httpapi"),
		startedAt: time.Now(),
	}
	s.routes(assets)

	h2s := &http2.Server{}
	handler := h2c.NewHandler(s.mux, h2s)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

func (s *Server) routes(assets http.Handler) {
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetricsJSON)
	s.mux.HandleFunc("/active-threads", s.handleActiveThreads)
	s.mux.HandleFunc("/threads/", s.handleThreadRoutes)
	s.mux.HandleFunc("/thread-dump", s.handleThreadDump)
	s.mux.HandleFunc("/pinning-analysis", s.handlePinningAnalysis)
	s.mux.HandleFunc("/carrier-threads", s.handleCarrierThreads)
	s.mux.HandleFunc("/gc-analysis", s.handleGCAnalysis)
	s.mux.HandleFunc("/cpu-metrics", s.handleCPUMetrics)
	s.mux.HandleFunc("/allocation-analysis", s.handleAllocationAnalysis)
	s.mux.HandleFunc("/metaspace-metrics", s.handleMetaspaceMetrics)
	s.mux.HandleFunc("/method-profiling", s.handleMethodProfiling)
	s.mux.HandleFunc("/contention-analysis", s.handleContentionAnalysis)
	s.mux.HandleFunc("/correlations", s.handleCorrelations)
	s.mux.HandleFunc("/flamegraph.json", s.handleFlameGraphJSON)
	s.mux.HandleFunc("/flamegraph.collapsed", s.handleFlameGraphCollapsed)
	if s.deps.PrometheusEnabled {
		s.mux.HandleFunc("/prometheus", s.handlePrometheus)
	}
	s.mux.HandleFunc("/export", s.handleExport)

	if assets != nil {
		s.mux.Handle("/", assets)
	}
}

// ListenAndServe blocks serving until ctx is cancelled, then shuts down
// gracefully within a 5s bound.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
