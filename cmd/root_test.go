package cmd

import (
	"testing"
	"time"

	"github.com/gopherlabs/ptop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 0, cfg.Count)
	assert.False(t, cfg.Tree)
}

func TestParseFlagsOverrides(t *testing.T) {
	cfg, err := parseFlags([]string{"-interval", "500ms", "-count", "3", "-tree"})
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, 3, cfg.Count)
	assert.True(t, cfg.Tree)
}

func TestParseFlagsRejectsUnknownFlag(t *testing.T) {
	_, err := parseFlags([]string{"-bogus"})
	assert.Error(t, err)
}

func TestMemUsedPercentComputesFromAvailable(t *testing.T) {
	mem := model.MemoryMetrics{Total: 1000, Available: 400}
	assert.InDelta(t, 60.0, memUsedPercent(mem), 1e-9)
}

func TestMemUsedPercentZeroTotalYieldsZero(t *testing.T) {
	assert.Equal(t, 0.0, memUsedPercent(model.MemoryMetrics{}))
}

func TestMemUsedPercentClampsToZeroWhenAvailableExceedsTotal(t *testing.T) {
	mem := model.MemoryMetrics{Total: 1000, Available: 5000}
	assert.Equal(t, 0.0, memUsedPercent(mem))
}
