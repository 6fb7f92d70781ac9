// Package config loads Argus's startup configuration from environment
// variables over the values returned by Defaults, assembled once into a plain
// value injected into every component. There is no hot-reload: Load is
// called once in main and the returned Config is immutable thereafter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is Argus's full set of startup inputs, per spec.md §6.
type Config struct {
	BufferSize int

	ServerEnabled bool
	ServerPort    int

	GCEnabled bool

	CPUEnabled  bool
	CPUInterval int // ms

	AllocationEnabled   bool
	AllocationThreshold uint64 // bytes

	MetaspaceEnabled bool

	ProfilingEnabled  bool
	ProfilingInterval int // ms

	ContentionEnabled  bool
	ContentionThreshold int // ms

	CorrelationEnabled bool

	MetricsPrometheusEnabled bool

	OTLPEnabled     bool
	OTLPEndpoint    string
	OTLPInterval    int // ms
	OTLPHeaders     string
	OTLPServiceName string
}

// Defaults returns Argus's default configuration.
func Defaults() Config {
	return Config{
		BufferSize:               65536,
		ServerEnabled:            true,
		ServerPort:               9202,
		GCEnabled:                true,
		CPUEnabled:               true,
		CPUInterval:              1000,
		AllocationEnabled:        false,
		AllocationThreshold:      1 << 20,
		MetaspaceEnabled:         true,
		ProfilingEnabled:         false,
		ProfilingInterval:        20,
		ContentionEnabled:        false,
		ContentionThreshold:      50,
		CorrelationEnabled:       true,
		MetricsPrometheusEnabled: true,
		OTLPEnabled:              false,
		OTLPEndpoint:             "http://localhost:4318/v1/metrics",
		OTLPInterval:             15000,
		OTLPHeaders:              "",
		OTLPServiceName:          "argus",
	}
}

// envBinding pairs one environment variable name with a setter closure.
type envBinding struct {
	name string
	set  func(cfg *Config, raw string) error
}

func bindings() []envBinding {
	return []envBinding{
		{"ARGUS_BUFFER_SIZE", func(c *Config, v string) error { return setInt(&c.BufferSize, v) }},
		{"ARGUS_SERVER_ENABLED", func(c *Config, v string) error { return setBool(&c.ServerEnabled, v) }},
		{"ARGUS_SERVER_PORT", func(c *Config, v string) error { return setInt(&c.ServerPort, v) }},
		{"ARGUS_GC_ENABLED", func(c *Config, v string) error { return setBool(&c.GCEnabled, v) }},
		{"ARGUS_CPU_ENABLED", func(c *Config, v string) error { return setBool(&c.CPUEnabled, v) }},
		{"ARGUS_CPU_INTERVAL", func(c *Config, v string) error { return setInt(&c.CPUInterval, v) }},
		{"ARGUS_ALLOCATION_ENABLED", func(c *Config, v string) error { return setBool(&c.AllocationEnabled, v) }},
		{"ARGUS_ALLOCATION_THRESHOLD", func(c *Config, v string) error { return setUint64(&c.AllocationThreshold, v) }},
		{"ARGUS_METASPACE_ENABLED", func(c *Config, v string) error { return setBool(&c.MetaspaceEnabled, v) }},
		{"ARGUS_PROFILING_ENABLED", func(c *Config, v string) error { return setBool(&c.ProfilingEnabled, v) }},
		{"ARGUS_PROFILING_INTERVAL", func(c *Config, v string) error { return setInt(&c.ProfilingInterval, v) }},
		{"ARGUS_CONTENTION_ENABLED", func(c *Config, v string) error { return setBool(&c.ContentionEnabled, v) }},
		{"ARGUS_CONTENTION_THRESHOLD", func(c *Config, v string) error { return setInt(&c.ContentionThreshold, v) }},
		{"ARGUS_CORRELATION_ENABLED", func(c *Config, v string) error { return setBool(&c.CorrelationEnabled, v) }},
		{"ARGUS_METRICS_PROMETHEUS_ENABLED", func(c *Config, v string) error { return setBool(&c.MetricsPrometheusEnabled, v) }},
		{"ARGUS_OTLP_ENABLED", func(c *Config, v string) error { return setBool(&c.OTLPEnabled, v) }},
		{"ARGUS_OTLP_ENDPOINT", func(c *Config, v string) error { c.OTLPEndpoint = v; return nil }},
		{"ARGUS_OTLP_INTERVAL", func(c *Config, v string) error { return setInt(&c.OTLPInterval, v) }},
		{"ARGUS_OTLP_HEADERS", func(c *Config, v string) error { c.OTLPHeaders = v; return nil }},
		{"ARGUS_OTLP_SERVICE_NAME", func(c *Config, v string) error { c.OTLPServiceName = v; return nil }},
	}
}

func setInt(dst *int, raw string) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setUint64(dst *uint64, raw string) error {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func setBool(dst *bool, raw string) error {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// Warning describes one configuration input that failed to parse and
// fell back to its default.
type Warning struct {
	Var string
	Err error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v, using default", w.Var, w.Err)
}

// Load reads environment variables into a Config seeded from Defaults.
// Parse failures fall back to the default value and are returned as
// warnings rather than aborting startup, per spec.md §7.
func Load() (Config, []Warning) {
	cfg := Defaults()
	var warnings []Warning
	for _, b := range bindings() {
		raw, ok := os.LookupEnv(b.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := b.set(&cfg, raw); err != nil {
			warnings = append(warnings, Warning{Var: b.name, Err: err})
		}
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	return cfg, warnings
}

// ParseHeaders parses the "k1=v1,k2=v2" OTLP header string into a map.
// Malformed entries (missing '=') are skipped.
func ParseHeaders(raw string) map[string]string {
	out := make(map[string]string)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
