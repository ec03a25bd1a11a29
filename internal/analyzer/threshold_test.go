package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

func fptr(v float64) *float64 { return &v }

func thresholdTestConfig() *config.Config {
	cfg := config.Default()
	cfg.Thresholds = map[string]config.Threshold{
		"system.disk_percent": {
			Warning:  fptr(85),
			Critical: fptr(95),
		},
		"health.body_battery.current": {
			Warning:      fptr(20),
			Critical:     fptr(10),
			LowerIsWorse: true,
		},
		"health.stress.current": {
			Warning:          fptr(50),
			Critical:         fptr(70),
			SustainedMinutes: 120,
		},
	}
	return cfg
}

func newThresholdAnalyzer(t *testing.T, now time.Time) *ThresholdAnalyzer {
	t.Helper()
	cfg := thresholdTestConfig()
	require.NoError(t, cfg.Validate())
	a := NewThresholdAnalyzer(cfg, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

func TestThresholdBelowWarningIsQuiet(t *testing.T) {
	a := newThresholdAnalyzer(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	insights, err := a.Analyze(context.Background(), Batch{
		"system": {"disk_percent": 50.0},
	})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestThresholdWarningBreach(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	a := newThresholdAnalyzer(t, now)

	insights, err := a.Analyze(context.Background(), Batch{
		"system": {"disk_percent": 90.0},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)

	ins := insights[0]
	assert.Equal(t, model.PriorityMedium, ins.Priority)
	assert.Equal(t, model.CategorySystem, ins.Category)
	assert.Equal(t, "threshold", ins.Source)
	assert.Equal(t, "system.disk_percent_elevated_2026-03-14T12", ins.DedupeKey)
	require.NotNil(t, ins.ExpiresAt)
	assert.Equal(t, now.Add(2*time.Hour), *ins.ExpiresAt)
}

func TestThresholdCriticalBreach(t *testing.T) {
	a := newThresholdAnalyzer(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	insights, err := a.Analyze(context.Background(), Batch{
		"system": {"disk_percent": 97.0},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, model.PriorityHigh, insights[0].Priority)
	assert.Contains(t, insights[0].Title, "critical")
}

func TestThresholdLowerIsWorse(t *testing.T) {
	a := newThresholdAnalyzer(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	insights, err := a.Analyze(context.Background(), Batch{
		"health": {"body_battery": map[string]any{"current": 8.0}},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, model.PriorityHigh, insights[0].Priority)
	assert.Equal(t, model.CategoryHealth, insights[0].Category)

	insights, err = a.Analyze(context.Background(), Batch{
		"health": {"body_battery": map[string]any{"current": 15.0}},
	})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, model.PriorityMedium, insights[0].Priority)
}

func TestThresholdSkipsSustainedRules(t *testing.T) {
	a := newThresholdAnalyzer(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	insights, err := a.Analyze(context.Background(), Batch{
		"health": {"stress": map[string]any{"current": 90.0}},
	})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestThresholdMissingCollectorOrPath(t *testing.T) {
	a := newThresholdAnalyzer(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))

	insights, err := a.Analyze(context.Background(), Batch{
		"weather": {"current": map[string]any{"temp": 3.0}},
	})
	require.NoError(t, err)
	assert.Empty(t, insights)

	insights, err = a.Analyze(context.Background(), Batch{
		"system": {"load": 1.0},
	})
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestLookupDotPath(t *testing.T) {
	data := map[string]any{
		"stress": map[string]any{"current": 42},
		"flat":   7.5,
	}

	v, ok := Lookup(data, "stress.current")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = Lookup(data, "flat")
	require.True(t, ok)
	assert.Equal(t, 7.5, v)

	_, ok = Lookup(data, "stress.missing")
	assert.False(t, ok)

	_, ok = Lookup(data, "flat.deeper")
	assert.False(t, ok)
}

func TestSplitMetric(t *testing.T) {
	c, p, ok := SplitMetric("system.disk_percent")
	require.True(t, ok)
	assert.Equal(t, "system", c)
	assert.Equal(t, "disk_percent", p)

	c, p, ok = SplitMetric("health.stress.current")
	require.True(t, ok)
	assert.Equal(t, "health", c)
	assert.Equal(t, "stress.current", p)

	_, _, ok = SplitMetric("nodot")
	assert.False(t, ok)
}
