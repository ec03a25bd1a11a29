package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

const (
	// A breach above critical alerts after this long regardless of the
	// configured sustained window.
	criticalSustain = 60 * time.Minute
	// Recoveries shorter than this are not worth mentioning.
	minRecoverySpan = 30 * time.Minute
)

// SustainedAnalyzer watches for values that stay elevated over time
// rather than single spikes. It covers every thresholds entry with a
// sustained_minutes window (stress is the canonical case). Stateful
// across ticks: it remembers when the current breach began.
type SustainedAnalyzer struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time

	highStart     map[string]time.Time
	criticalStart map[string]time.Time
}

func NewSustainedAnalyzer(cfg *config.Config, logger *zap.Logger) *SustainedAnalyzer {
	return &SustainedAnalyzer{
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		highStart:     make(map[string]time.Time),
		criticalStart: make(map[string]time.Time),
	}
}

func (a *SustainedAnalyzer) Name() string { return "sustained" }

func (a *SustainedAnalyzer) Enabled() bool {
	return a.cfg.Analyzers["sustained"].IsEnabled()
}

func (a *SustainedAnalyzer) Analyze(ctx context.Context, batch Batch) ([]model.Insight, error) {
	now := a.now().In(a.cfg.Location())
	var insights []model.Insight

	for _, metric := range a.cfg.ThresholdNames() {
		rule := a.cfg.Thresholds[metric]
		if rule.SustainedMinutes <= 0 {
			continue
		}

		collectorName, path, ok := SplitMetric(metric)
		if !ok {
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

		insights = append(insights, a.track(metric, collectorName, value, rule, now)...)
	}

	return insights, nil
}

func (a *SustainedAnalyzer) track(metric, collectorName string, value float64, rule config.Threshold, now time.Time) []model.Insight {
	var insights []model.Insight
	category := CategoryFor(collectorName)
	warning := *rule.Warning

	// Critical band.
	if rule.Critical != nil && value >= *rule.Critical {
		start, running := a.criticalStart[metric]
		if !running {
			a.criticalStart[metric] = now
		} else if now.Sub(start) >= criticalSustain {
			ins := model.NewInsight(
				fmt.Sprintf("%s critically elevated", metric),
				fmt.Sprintf("%s has been at %.0f (critical: %.0f) for over %d minutes. Step away if you can.",
					metric, value, *rule.Critical, int(now.Sub(start).Minutes())),
				model.PriorityUrgent,
				category,
				now,
			)
			ins.Source = a.Name()
			ins.DedupeKey = fmt.Sprintf("sustained_%s_critical", metric)
			expires := now.Add(time.Hour)
			ins.ExpiresAt = &expires
			ins.Data = map[string]any{"metric": metric, "value": value, "minutes": now.Sub(start).Minutes()}
			insights = append(insights, ins)
		}
	} else {
		delete(a.criticalStart, metric)
	}

	// Warning band.
	if value >= warning {
		start, running := a.highStart[metric]
		if !running {
			a.highStart[metric] = now
			a.logger.Debug("Sustained watch started",
				zap.String("metric", metric),
				zap.Float64("value", value),
			)
		} else if now.Sub(start) >= time.Duration(rule.SustainedMinutes)*time.Minute {
			ins := model.NewInsight(
				fmt.Sprintf("%s elevated for %d minutes", metric, int(now.Sub(start).Minutes())),
				fmt.Sprintf("%s has stayed above %.0f (currently %.0f). Consider a break.",
					metric, warning, value),
				model.PriorityHigh,
				category,
				now,
			)
			ins.Source = a.Name()
			ins.DedupeKey = fmt.Sprintf("sustained_%s_high", metric)
			expires := now.Add(breachExpiry)
			ins.ExpiresAt = &expires
			ins.Data = map[string]any{"metric": metric, "value": value, "minutes": now.Sub(start).Minutes()}
			insights = append(insights, ins)
		}
		return insights
	}

	// Back below warning: acknowledge a real recovery.
	if start, running := a.highStart[metric]; running {
		if now.Sub(start) >= minRecoverySpan {
			ins := model.NewInsight(
				fmt.Sprintf("%s back to normal", metric),
				fmt.Sprintf("%s dropped to %.0f after %d elevated minutes. Nice recovery.",
					metric, value, int(now.Sub(start).Minutes())),
				model.PriorityLow,
				category,
				now,
			)
			ins.Source = a.Name()
			ins.DedupeKey = fmt.Sprintf("sustained_%s_recovery", metric)
			expires := now.Add(12 * time.Hour)
			ins.ExpiresAt = &expires
			insights = append(insights, ins)
		}
		delete(a.highStart, metric)
	}

	return insights
}
