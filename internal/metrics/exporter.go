package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"argus/internal/logging"
)

const exportHTTPTimeout = 10 * time.Second

// ErrAlreadyRunning is returned by Exporter.Start when already running.
var ErrAlreadyRunning = errors.New("metrics: exporter already running")

// dataPoint is one OTLP-style numeric sample.
type dataPoint struct {
	TimeUnixNano string  `json:"timeUnixNano"`
	AsInt        string  `json:"asInt,omitempty"`
	AsDouble     float64 `json:"asDouble,omitempty"`
}

type gaugeMetric struct {
	DataPoints []dataPoint `json:"dataPoints"`
}

type sumMetric struct {
	DataPoints            []dataPoint `json:"dataPoints"`
	AggregationTemporality int        `json:"aggregationTemporality"`
	IsMonotonic           bool        `json:"isMonotonic"`
}

// Metric is a fixed-schema metric entry: exactly one of Gauge or Sum
// is populated.
type Metric struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Gauge       *gaugeMetric `json:"gauge,omitempty"`
	Sum         *sumMetric   `json:"sum,omitempty"`
}

type scope struct {
	Metrics []Metric `json:"metrics"`
}

type resource struct {
	ServiceName string  `json:"serviceName"`
	Scope       []scope `json:"scope"`
}

type pushPayload struct {
	Resource resource `json:"resource"`
}

// BuildFunc produces the current metric set to push, called once per tick.
type BuildFunc func(now time.Time) []Metric

// Gauge builds a gauge Metric with a single data point.
func Gauge(name, description string, now time.Time, value float64) Metric {
	return Metric{
		Name:        name,
		Description: description,
		Gauge: &gaugeMetric{DataPoints: []dataPoint{
			{TimeUnixNano: formatUnixNano(now), AsDouble: value},
		}},
	}
}

// Sum builds a monotonic cumulative-sum Metric with a single
// integer data point.
func Sum(name, description string, now time.Time, value int64) Metric {
	return Metric{
		Name:        name,
		Description: description,
		Sum: &sumMetric{
			DataPoints:             []dataPoint{{TimeUnixNano: formatUnixNano(now), AsInt: formatInt(value)}},
			AggregationTemporality: 2,
			IsMonotonic:            true,
		},
	}
}

func formatUnixNano(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Exporter periodically builds a push payload and POSTs it to a
// configured endpoint. There is no queue: a failed tick is logged and
// dropped; the next tick is independent (spec.md §4.6, resolved in
// DESIGN.md: no in-tick retry).
type Exporter struct {
	endpoint    string
	serviceName string
	headers     map[string]string
	interval    time.Duration
	build       BuildFunc
	client      *http.Client
	logger      *slog.Logger
	nowFunc     func() time.Time

	mu        sync.Mutex
	running   bool
	scheduler gocron.Scheduler
}

// NewExporter constructs an Exporter. logger may be nil (discard).
func NewExporter(endpoint, serviceName string, headers map[string]string, interval time.Duration, build BuildFunc, logger *slog.Logger) *Exporter {
	return &Exporter{
		endpoint:    endpoint,
		serviceName: serviceName,
		headers:     headers,
		interval:    interval,
		build:       build,
		client:      &http.Client{Timeout: exportHTTPTimeout},
		logger:      logging.Default(logger).With("component", "metrics.exporter"),
		nowFunc:     time.Now,
	}
}

// Start launches the periodic push scheduler.
func (e *Exporter) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(e.interval),
		gocron.NewTask(func() { e.tick(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}
	sched.Start()
	e.scheduler = sched
	e.running = true
	return nil
}

// Stop shuts the scheduler down.
func (e *Exporter) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	return e.scheduler.Shutdown()
}

func (e *Exporter) tick(ctx context.Context) {
	now := e.nowFunc()
	payload := pushPayload{Resource: resource{
		ServiceName: e.serviceName,
		Scope:       []scope{{Metrics: e.build(now)}},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("failed to marshal push payload", "error", err)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, exportHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Error("failed to build export request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("export request failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		e.logger.Warn("export endpoint returned error status", "status", resp.StatusCode)
	}
}
