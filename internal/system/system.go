// Package system assembles every component into one running Argus
// instance: the ring buffers, analyzers, thread-state manager,
// retention store, ingestion engine, broadcaster, metrics exporter, and
// HTTP surface, wired from a single Config value (spec.md §9's
// "explicit System value constructed at startup that owns all
// components").
package system

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"argus/internal/analyzer"
	"argus/internal/broadcast"
	"argus/internal/config"
	"argus/internal/event"
	"argus/internal/frontend"
	"argus/internal/httpapi"
	"argus/internal/ingest"
	"argus/internal/logging"
	"argus/internal/metrics"
	"argus/internal/retention"
	"argus/internal/ring"
	"argus/internal/threadstate"
)

// System owns every component's lifecycle for one Argus process.
type System struct {
	cfg    config.Config
	logger *slog.Logger

	engine      *ingest.Engine
	broadcaster *broadcast.Broadcaster
	exporter    *metrics.Exporter
	httpServer  *httpapi.Server
}

// New assembles a System from cfg and source. source is the host's
// event transport; logger may be nil (discard).
func New(cfg config.Config, source ingest.ChannelSource, logger *slog.Logger) *System {
	logger = logging.Default(logger).With("component", "system")
	rings := buildRings(cfg)
	analyzers := buildAnalyzers(cfg)
	state := threadstate.NewManager(0)
	store := retention.NewStore(0, 0, 0)

	fcfg := ingest.FamilyConfig{
		GCEnabled:             cfg.GCEnabled,
		CPUEnabled:            cfg.CPUEnabled,
		AllocationEnabled:     cfg.AllocationEnabled,
		AllocationThreshold:   cfg.AllocationThreshold,
		MetaspaceEnabled:      cfg.MetaspaceEnabled,
		ProfilingEnabled:      cfg.ProfilingEnabled,
		ContentionEnabled:     cfg.ContentionEnabled,
		ContentionThresholdMs: cfg.ContentionThreshold,
	}
	engine := ingest.NewEngine(source, rings, fcfg, logger)

	bcast := broadcast.New(rings, analyzers, state, store, 0, 0, logger)

	deps := httpapi.Deps{
		Broadcaster:       bcast,
		Analyzers:         analyzers,
		State:             state,
		Retention:         store,
		Logger:            logger,
		PrometheusEnabled: cfg.MetricsPrometheusEnabled,
	}

	var assets http.Handler
	if h := frontend.Handler(); h != nil {
		assets = h
	}
	server := httpapi.NewServer(":"+strconv.Itoa(cfg.ServerPort), deps, assets)

	sys := &System{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		broadcaster: bcast,
		httpServer:  server,
	}

	if cfg.OTLPEnabled {
		sys.exporter = metrics.NewExporter(
			cfg.OTLPEndpoint,
			cfg.OTLPServiceName,
			config.ParseHeaders(cfg.OTLPHeaders),
			time.Duration(cfg.OTLPInterval)*time.Millisecond,
			sys.buildPushMetrics(analyzers),
			logger,
		)
	}

	return sys
}

func buildRings(cfg config.Config) ingest.Rings {
	size := cfg.BufferSize
	r := ingest.Rings{
		VirtualThread: ring.New[event.VirtualThreadEvent](size),
	}
	if cfg.GCEnabled {
		r.GC = ring.New[event.GCEvent](size)
	}
	if cfg.CPUEnabled {
		r.CPU = ring.New[event.CPUEvent](size)
	}
	if cfg.AllocationEnabled {
		r.Allocation = ring.New[event.AllocationEvent](size)
	}
	if cfg.MetaspaceEnabled {
		r.Metaspace = ring.New[event.MetaspaceEvent](size)
	}
	if cfg.ProfilingEnabled {
		r.ExecutionSample = ring.New[event.ExecutionSampleEvent](size)
	}
	if cfg.ContentionEnabled {
		r.Contention = ring.New[event.ContentionEvent](size)
	}
	return r
}

func buildAnalyzers(cfg config.Config) broadcast.Analyzers {
	a := broadcast.Analyzers{
		Pinning: analyzer.NewPinningAnalyzer(),
		Carrier: analyzer.NewCarrierAnalyzer(),
	}
	if cfg.GCEnabled {
		a.GC = analyzer.NewGCAnalyzer()
	}
	if cfg.CPUEnabled {
		a.CPU = analyzer.NewCPUAnalyzer()
	}
	if cfg.AllocationEnabled {
		a.Allocation = analyzer.NewAllocationAnalyzer()
	}
	if cfg.MetaspaceEnabled {
		a.Metaspace = analyzer.NewMetaspaceAnalyzer()
	}
	if cfg.ProfilingEnabled {
		a.Profiling = analyzer.NewProfilingAnalyzer()
		a.FlameGraph = analyzer.NewFlameGraphAnalyzer(0)
	}
	if cfg.ContentionEnabled {
		a.Contention = analyzer.NewContentionAnalyzer()
	}
	if cfg.CorrelationEnabled {
		a.Correlation = analyzer.NewCorrelationAnalyzer()
	}
	return a
}

// buildPushMetrics adapts each enabled analyzer's snapshot into the
// exporter's OTLP-style BuildFunc. It reads the same analyzer snapshots
// /prometheus renders and pushes a subset of those values: pinning events,
// GC count and max pause, machine CPU, allocated bytes and metaspace usage.
func (s *System) buildPushMetrics(a broadcast.Analyzers) metrics.BuildFunc {
	return func(now time.Time) []metrics.Metric {
		var out []metrics.Metric

		if a.Pinning != nil {
			p := a.Pinning.GetAnalysis()
			out = append(out, metrics.Sum("argus.pinning.events", "Total pinning events observed", now, p.TotalPinnedEvents))
		}
		if a.GC != nil {
			gc := a.GC.GetAnalysis()
			out = append(out,
				metrics.Sum("argus.gc.events", "Total GC events observed", now, gc.EventCount),
				metrics.Gauge("argus.gc.pause.max_seconds", "Maximum single GC pause observed in seconds", now, float64(gc.MaxPauseNs)/1e9),
			)
		}
		if a.CPU != nil {
			cpu := a.CPU.GetAnalysis()
			if cpu.Current != nil {
				out = append(out, metrics.Gauge("argus.cpu.machine_total", "Most recent machine-wide CPU load sample", now, cpu.Current.MachineTotal))
			}
		}
		if a.Allocation != nil {
			alloc := a.Allocation.GetAnalysis()
			out = append(out, metrics.Sum("argus.allocations.bytes", "Total bytes allocated above threshold", now, int64(alloc.TotalBytes)))
		}
		if a.Metaspace != nil {
			ms := a.Metaspace.GetAnalysis()
			if ms.Current != nil {
				out = append(out, metrics.Gauge("argus.metaspace.used_bytes", "Current metaspace usage in bytes", now, float64(ms.Current.Used)))
			}
		}
		return out
	}
}

// Start launches the ingestion engine, broadcaster, metrics exporter
// (if enabled), and HTTP server, in that order, and blocks until ctx is
// cancelled.
func (s *System) Start(ctx context.Context) error {
	if err := s.engine.Start(ctx, 0); err != nil {
		return fmt.Errorf("start ingestion engine: %w", err)
	}
	if err := s.broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}
	if s.exporter != nil {
		if err := s.exporter.Start(ctx); err != nil {
			return fmt.Errorf("start metrics exporter: %w", err)
		}
	}

	s.logger.Info("argus started", "port", s.cfg.ServerPort)
	err := s.httpServer.ListenAndServe(ctx)

	s.logger.Info("shutting down")
	if s.exporter != nil {
		_ = s.exporter.Stop()
	}
	_ = s.broadcaster.Stop()
	_ = s.engine.Stop()

	return err
}
