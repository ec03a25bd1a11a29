package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

const (
	trendInterval = 6 * time.Hour
	// Growth below this is noise, not a trend.
	minGrowthPerDay = 0.5
)

// ResourceTrendAnalyzer projects disk growth and looks for memory-leak
// patterns in system snapshot history. Periodic: runs every six hours.
type ResourceTrendAnalyzer struct {
	cfg     *config.Config
	history History
	logger  *zap.Logger
	now     func() time.Time
}

func NewResourceTrendAnalyzer(cfg *config.Config, history History, logger *zap.Logger) *ResourceTrendAnalyzer {
	return &ResourceTrendAnalyzer{cfg: cfg, history: history, logger: logger, now: time.Now}
}

func (a *ResourceTrendAnalyzer) Name() string { return "resource_trend" }

func (a *ResourceTrendAnalyzer) Enabled() bool {
	return a.cfg.Analyzers["resource_trend"].IsEnabled()
}

func (a *ResourceTrendAnalyzer) Interval() time.Duration { return trendInterval }

func (a *ResourceTrendAnalyzer) Analyze(ctx context.Context, _ Batch) ([]model.Insight, error) {
	now := a.now().In(a.cfg.Location())

	var insights []model.Insight

	disk, err := a.analyzeDiskTrends(ctx, now)
	if err != nil {
		return nil, err
	}
	insights = append(insights, disk...)

	mem, err := a.analyzeMemoryTrends(ctx, now)
	if err != nil {
		return nil, err
	}
	insights = append(insights, mem...)

	return insights, nil
}

type sample struct {
	at    time.Time
	value float64
}

func (a *ResourceTrendAnalyzer) analyzeDiskTrends(ctx context.Context, now time.Time) ([]model.Insight, error) {
	snapshots, err := a.history.RecentSnapshots(ctx, "system", now.Add(-7*24*time.Hour), 500)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 10 {
		return nil, nil
	}

	series := collectSeries(snapshots, "disk_percent")
	alertDays := a.cfg.Analyzers["resource_trend"].AlertDays
	if alertDays <= 0 {
		alertDays = 30
	}

	var insights []model.Insight
	for _, host := range sortedKeys(series) {
		history := series[host]
		if len(history) < 5 {
			continue
		}
		sort.Slice(history, func(i, j int) bool { return history[i].at.Before(history[j].at) })

		first, last := history[0], history[len(history)-1]
		days := last.at.Sub(first.at).Hours() / 24
		if days < 1 {
			continue
		}

		growthPerDay := (last.value - first.value) / days
		if growthPerDay <= minGrowthPerDay {
			continue
		}

		daysUntilFull := (100 - last.value) / growthPerDay
		if daysUntilFull > float64(alertDays) {
			continue
		}

		priority := model.PriorityMedium
		if daysUntilFull <= 7 {
			priority = model.PriorityHigh
		}

		ins := model.NewInsight(
			fmt.Sprintf("Disk filling up on %s", host),
			fmt.Sprintf("At current rate (%.1f%%/day), disk will be full in ~%.0f days. Currently at %.1f%%.",
				growthPerDay, daysUntilFull, last.value),
			priority,
			model.CategorySystem,
			now,
		)
		ins.Source = a.Name()
		ins.Confidence = 0.7
		ins.DedupeKey = fmt.Sprintf("disk_trend_%s", host)
		expires := now.Add(48 * time.Hour)
		ins.ExpiresAt = &expires
		ins.Data = map[string]any{
			"host":            host,
			"current_percent": last.value,
			"growth_per_day":  growthPerDay,
			"days_until_full": daysUntilFull,
		}
		insights = append(insights, ins)
	}
	return insights, nil
}

func (a *ResourceTrendAnalyzer) analyzeMemoryTrends(ctx context.Context, now time.Time) ([]model.Insight, error) {
	snapshots, err := a.history.RecentSnapshots(ctx, "system", now.Add(-24*time.Hour), 500)
	if err != nil {
		return nil, err
	}
	if len(snapshots) < 20 {
		return nil, nil
	}

	series := collectSeries(snapshots, "memory_percent")

	var insights []model.Insight
	for _, host := range sortedKeys(series) {
		history := series[host]
		if len(history) < 10 {
			continue
		}
		sort.Slice(history, func(i, j int) bool { return history[i].at.Before(history[j].at) })

		increasing := 0
		for i := 1; i < len(history); i++ {
			if history[i].value > history[i-1].value {
				increasing++
			}
		}
		ratio := float64(increasing) / float64(len(history)-1)
		current := history[len(history)-1].value

		if ratio <= 0.8 || current <= 80 {
			continue
		}

		ins := model.NewInsight(
			fmt.Sprintf("Possible memory leak on %s", host),
			fmt.Sprintf("Memory has been consistently increasing (currently %.1f%%). Consider checking for runaway processes.", current),
			model.PriorityMedium,
			model.CategorySystem,
			now,
		)
		ins.Source = a.Name()
		ins.Confidence = 0.6
		ins.DedupeKey = fmt.Sprintf("memory_leak_%s", host)
		expires := now.Add(12 * time.Hour)
		ins.ExpiresAt = &expires
		ins.Data = map[string]any{
			"host":            host,
			"current_percent": current,
			"increase_ratio":  ratio,
			"samples":         len(history),
		}
		insights = append(insights, ins)
	}
	return insights, nil
}

// collectSeries extracts a per-host time series for one metric from
// system snapshots. The local machine reports at the top level; remote
// hosts appear under a "servers" list.
func collectSeries(snapshots []model.Snapshot, field string) map[string][]sample {
	series := make(map[string][]sample)

	for _, snap := range snapshots {
		if v, ok := toFloat(snap.Data[field]); ok {
			series["local"] = append(series["local"], sample{at: snap.Timestamp, value: v})
		}

		servers, _ := snap.Data["servers"].([]any)
		for _, raw := range servers {
			server, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			name, _ := server["name"].(string)
			if name == "" {
				name = "unknown"
			}
			if v, ok := toFloat(server[field]); ok {
				series[name] = append(series[name], sample{at: snap.Timestamp, value: v})
			}
		}
	}
	return series
}

func sortedKeys(m map[string][]sample) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
