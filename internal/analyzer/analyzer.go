// Package analyzer turns collected data into candidate insights.
// Analyzers are pure with respect to their inputs plus store reads; they
// never call delivery. Coupling flows only through Insight values.
package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"insightd/internal/model"
)

// Batch is one tick's collected data, keyed by collector name.
type Batch map[string]map[string]any

// Analyzer inspects a batch and emits zero or more insights.
type Analyzer interface {
	Name() string
	Enabled() bool
	Analyze(ctx context.Context, batch Batch) ([]model.Insight, error)
}

// Periodic analyzers run on their own cadence instead of every tick.
// They typically read snapshot history rather than the live batch.
type Periodic interface {
	Analyzer
	Interval() time.Duration
}

// History is the snapshot-store read surface analyzers depend on.
type History interface {
	RecentSnapshots(ctx context.Context, collector string, since time.Time, limit int) ([]model.Snapshot, error)
}

// Lookup resolves a dot path ("stress.current") inside collector data
// and returns the numeric value at the leaf.
func Lookup(data map[string]any, path string) (float64, bool) {
	cur := any(data)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur, ok = m[seg]
		if !ok {
			return 0, false
		}
	}
	return toFloat(cur)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// SplitMetric splits "system.disk_percent" into collector and data path.
func SplitMetric(metric string) (collector, path string, ok bool) {
	idx := strings.Index(metric, ".")
	if idx <= 0 || idx == len(metric)-1 {
		return "", "", false
	}
	return metric[:idx], metric[idx+1:], true
}

// CategoryFor maps a collector name to the insight category it feeds.
func CategoryFor(collector string) model.Category {
	switch collector {
	case "health":
		return model.CategoryHealth
	case "calendar":
		return model.CategoryCalendar
	case "weather":
		return model.CategoryWeather
	default:
		return model.CategorySystem
	}
}
