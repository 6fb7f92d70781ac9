package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsMatchSpec(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 65536, d.BufferSize)
	assert.Equal(t, 9202, d.ServerPort)
	assert.True(t, d.GCEnabled)
	assert.False(t, d.AllocationEnabled)
	assert.EqualValues(t, 1<<20, d.AllocationThreshold)
	assert.Equal(t, "argus", d.OTLPServiceName)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ARGUS_SERVER_PORT", "9999")
	t.Setenv("ARGUS_GC_ENABLED", "false")

	cfg, warnings := Load()
	assert.Empty(t, warnings)
	assert.Equal(t, 9999, cfg.ServerPort)
	assert.False(t, cfg.GCEnabled)
}

func TestLoadFallsBackToDefaultOnParseFailure(t *testing.T) {
	t.Setenv("ARGUS_SERVER_PORT", "not-a-number")

	cfg, warnings := Load()
	assert.Equal(t, 9202, cfg.ServerPort)
	assert.Len(t, warnings, 1)
	assert.Equal(t, "ARGUS_SERVER_PORT", warnings[0].Var)
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("Authorization=Bearer x,X-Custom=1")
	assert.Equal(t, "Bearer x", h["Authorization"])
	assert.Equal(t, "1", h["X-Custom"])
}

func TestParseHeadersEmpty(t *testing.T) {
	assert.Empty(t, ParseHeaders(""))
}
