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

type fakeHistory struct {
	snapshots []model.Snapshot
	err       error
}

func (f *fakeHistory) RecentSnapshots(ctx context.Context, collector string, since time.Time, limit int) ([]model.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Snapshot
	for _, s := range f.snapshots {
		if s.Collector == collector && !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTrendAnalyzer(t *testing.T, history *fakeHistory, now time.Time) *ResourceTrendAnalyzer {
	t.Helper()
	cfg := config.Default()
	cfg.Analyzers = map[string]config.AnalyzerConfig{
		"resource_trend": {AlertDays: 30},
	}
	require.NoError(t, cfg.Validate())

	a := NewResourceTrendAnalyzer(cfg, history, zap.NewNop())
	a.now = func() time.Time { return now }
	return a
}

// diskSnapshots builds daily system snapshots whose disk usage moves
// from start to end over the span.
func diskSnapshots(now time.Time, count int, start, end float64) []model.Snapshot {
	span := 6 * 24 * time.Hour
	snaps := make([]model.Snapshot, 0, count)
	for i := 0; i < count; i++ {
		frac := float64(i) / float64(count-1)
		at := now.Add(-span + time.Duration(frac*float64(span)))
		value := start + frac*(end-start)
		snaps = append(snaps, model.NewSnapshot("system", at, map[string]any{
			"disk_percent": value,
		}))
	}
	return snaps
}

func TestDiskTrendProjectsTimeToFull(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	// 70% to 88% over six days is 3%/day: full in four days.
	history := &fakeHistory{snapshots: diskSnapshots(now, 12, 70, 88)}
	a := newTrendAnalyzer(t, history, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	ins := insights[0]
	assert.Equal(t, model.PriorityHigh, ins.Priority)
	assert.Equal(t, "disk_trend_local", ins.DedupeKey)
	assert.Equal(t, "resource_trend", ins.Source)
	assert.InDelta(t, 0.7, ins.Confidence, 0.001)
	assert.Contains(t, ins.Title, "local")
}

func TestDiskTrendDistantFullDateUsesMediumPriority(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	// 1%/day with 20% headroom: full in roughly twenty days.
	history := &fakeHistory{snapshots: diskSnapshots(now, 12, 74, 80)}
	a := newTrendAnalyzer(t, history, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, model.PriorityMedium, insights[0].Priority)
}

func TestDiskTrendIgnoresFlatUsage(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{snapshots: diskSnapshots(now, 12, 70, 71)}
	a := newTrendAnalyzer(t, history, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestDiskTrendNeedsEnoughSamples(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{snapshots: diskSnapshots(now, 5, 70, 88)}
	a := newTrendAnalyzer(t, history, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestMemoryLeakDetection(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	var snaps []model.Snapshot
	for i := 0; i < 24; i++ {
		at := now.Add(-time.Duration(24-i) * time.Hour)
		snaps = append(snaps, model.NewSnapshot("system", at, map[string]any{
			"memory_percent": 60.0 + float64(i),
		}))
	}
	a := newTrendAnalyzer(t, &fakeHistory{snapshots: snaps}, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "memory_leak_local", insights[0].DedupeKey)
	assert.Equal(t, model.PriorityMedium, insights[0].Priority)
}

func TestMemoryStableUsageIsQuiet(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	var snaps []model.Snapshot
	for i := 0; i < 24; i++ {
		at := now.Add(-time.Duration(24-i) * time.Hour)
		value := 85.0
		if i%2 == 0 {
			value = 84.0
		}
		snaps = append(snaps, model.NewSnapshot("system", at, map[string]any{
			"memory_percent": value,
		}))
	}
	a := newTrendAnalyzer(t, &fakeHistory{snapshots: snaps}, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestTrendTracksRemoteServers(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	span := 6 * 24 * time.Hour
	var snaps []model.Snapshot
	for i := 0; i < 12; i++ {
		frac := float64(i) / 11.0
		at := now.Add(-span + time.Duration(frac*float64(span)))
		snaps = append(snaps, model.NewSnapshot("system", at, map[string]any{
			"disk_percent": 40.0, // local stays flat
			"servers": []any{
				map[string]any{"name": "nas", "disk_percent": 80.0 + frac*15.0},
			},
		}))
	}
	a := newTrendAnalyzer(t, &fakeHistory{snapshots: snaps}, now)

	insights, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "disk_trend_nas", insights[0].DedupeKey)
	assert.Contains(t, insights[0].Title, "nas")
}
