// Package decision maps candidate insights to delivery verdicts. The
// routing table is deliberate: urgency overrides the self-regulation
// mechanism, and every suppressed non-urgent path degrades to the next
// digest instead of being discarded.
package decision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"insightd/internal/model"
	"insightd/pkg/metrics"
)

// Engine decides what happens to each insight.
type Engine struct {
	budget *BudgetManager
	dedup  *Deduper
	logger *zap.Logger
}

func NewEngine(budget *BudgetManager, dedup *Deduper, logger *zap.Logger) *Engine {
	return &Engine{budget: budget, dedup: dedup, logger: logger}
}

// Decide returns the action for one insight plus the reason, evaluated
// at the given instant. Store errors degrade conservatively: a failed
// budget read counts as "no budget", never as a free interrupt.
func (e *Engine) Decide(ctx context.Context, insight model.Insight, now time.Time) (Action, string) {
	action, reason := e.decide(ctx, insight, now)

	metrics.RecordDecision(string(action), reason)
	e.logger.Debug("Decision",
		zap.String("title", insight.Title),
		zap.String("priority", insight.Priority.String()),
		zap.String("action", string(action)),
		zap.String("reason", reason),
	)
	return action, reason
}

func (e *Engine) decide(ctx context.Context, insight model.Insight, now time.Time) (Action, string) {
	if insight.IsExpired(now) {
		return ActionSkip, "expired"
	}

	if insight.DedupeKey != "" && e.dedup.SeenRecently(ctx, insight.DedupeKey, now) {
		return ActionSkip, "duplicate"
	}

	switch insight.Priority {
	case model.PriorityUrgent:
		return ActionDeliverNow, "urgent_priority"

	case model.PriorityHigh:
		ok, err := e.budget.CanDeliver(ctx, insight, now)
		if err != nil {
			e.logger.Warn("Budget check failed, batching instead", zap.Error(err))
			return ActionBatchReport, "budget_unavailable"
		}
		if ok {
			return ActionDeliverNow, "high_priority"
		}
		if e.budget.IsQuietHours(now) {
			return ActionBatchReport, "quiet_hours"
		}
		return ActionBatchReport, "budget_exhausted"

	case model.PriorityMedium:
		if e.budget.IsQuietHours(now) {
			return ActionBatchReport, "quiet_hours"
		}
		ok, err := e.budget.HasBudget(ctx, now)
		if err != nil {
			e.logger.Warn("Budget check failed, batching instead", zap.Error(err))
			return ActionBatchReport, "budget_unavailable"
		}
		if ok {
			return ActionDeliverNow, "medium_with_budget"
		}
		return ActionBatchReport, "budget_exhausted"

	default: // LOW: never an interruption, only digest content.
		return ActionBatchReport, "low_priority"
	}
}

// Budget exposes the budget manager for status surfaces.
func (e *Engine) Budget() *BudgetManager { return e.budget }

// Dedup exposes the deduper so delivery can arm cooldowns after sends.
func (e *Engine) Dedup() *Deduper { return e.dedup }
