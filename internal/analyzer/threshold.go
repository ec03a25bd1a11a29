package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

// breachExpiry bounds how late a threshold alert may still be delivered.
const breachExpiry = 2 * time.Hour

// ThresholdAnalyzer checks the latest values against configured
// warning/critical bounds. One rule per thresholds.<metric> entry, where
// the metric key is "<collector>.<dot.path>". The dedupe key encodes the
// metric and the current hour, so a sustained breach alerts at most once
// per hour and the decision cooldown handles the rest.
type ThresholdAnalyzer struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewThresholdAnalyzer(cfg *config.Config, logger *zap.Logger) *ThresholdAnalyzer {
	return &ThresholdAnalyzer{cfg: cfg, logger: logger, now: time.Now}
}

func (a *ThresholdAnalyzer) Name() string { return "threshold" }

func (a *ThresholdAnalyzer) Enabled() bool {
	return a.cfg.Analyzers["threshold"].IsEnabled()
}

func (a *ThresholdAnalyzer) Analyze(ctx context.Context, batch Batch) ([]model.Insight, error) {
	now := a.now().In(a.cfg.Location())
	var insights []model.Insight

	for _, metric := range a.cfg.ThresholdNames() {
		rule := a.cfg.Thresholds[metric]
		if rule.SustainedMinutes > 0 {
			// Pattern rules belong to the sustained analyzer.
			continue
		}

		collectorName, path, ok := SplitMetric(metric)
		if !ok {
			a.logger.Warn("Skipping malformed threshold metric", zap.String("metric", metric))
			continue
		}
		data, ok := batch[collectorName]
		if !ok {
			continue
		}
		value, ok := Lookup(data, path)
		if !ok {
			continue
		}

		if ins, breached := a.check(metric, collectorName, value, rule, now); breached {
			insights = append(insights, ins)
		}
	}

	return insights, nil
}

func (a *ThresholdAnalyzer) check(metric, collectorName string, value float64, rule config.Threshold, now time.Time) (model.Insight, bool) {
	var level string
	var priority model.Priority
	var bound float64

	if rule.LowerIsWorse {
		switch {
		case rule.Critical != nil && value <= *rule.Critical:
			level, priority, bound = "critical", model.PriorityHigh, *rule.Critical
		case value <= *rule.Warning:
			level, priority, bound = "low", model.PriorityMedium, *rule.Warning
		default:
			return model.Insight{}, false
		}
	} else {
		switch {
		case rule.Critical != nil && value >= *rule.Critical:
			level, priority, bound = "critical", model.PriorityHigh, *rule.Critical
		case value >= *rule.Warning:
			level, priority, bound = "elevated", model.PriorityMedium, *rule.Warning
		default:
			return model.Insight{}, false
		}
	}

	ins := model.NewInsight(
		fmt.Sprintf("%s %s", metric, level),
		fmt.Sprintf("%s is %.1f (threshold: %.1f)", metric, value, bound),
		priority,
		CategoryFor(collectorName),
		now,
	)
	ins.Source = a.Name()
	ins.DedupeKey = fmt.Sprintf("%s_%s_%s", metric, level, now.Truncate(time.Hour).Format("2006-01-02T15"))
	expires := now.Add(breachExpiry)
	ins.ExpiresAt = &expires
	ins.Data = map[string]any{
		"metric":    metric,
		"value":     value,
		"threshold": bound,
		"level":     level,
	}
	return ins, true
}
