package decision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

// DeliveryCounter is the store surface the budget manager reads.
type DeliveryCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// BudgetManager enforces the daily reach-out cap and quiet hours.
// Budget consumption is implicit: recording a delivery is the spend.
type BudgetManager struct {
	cfg     config.DecisionConfig
	counter DeliveryCounter
	loc     *time.Location
	logger  *zap.Logger
}

func NewBudgetManager(cfg config.DecisionConfig, counter DeliveryCounter, loc *time.Location, logger *zap.Logger) *BudgetManager {
	return &BudgetManager{cfg: cfg, counter: counter, loc: loc, logger: logger}
}

// IsQuietHours reports whether t's local hour falls inside the quiet
// window. start > end means the window wraps midnight.
func (b *BudgetManager) IsQuietHours(t time.Time) bool {
	hour := t.In(b.loc).Hour()
	start, end := b.cfg.QuietHoursStart, b.cfg.QuietHoursEnd

	if start == end {
		return false
	}
	if start > end {
		return hour >= start || hour < end
	}
	return start <= hour && hour < end
}

// HasBudget reports whether today's delivery count is below the cap.
func (b *BudgetManager) HasBudget(ctx context.Context, now time.Time) (bool, error) {
	local := now.In(b.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc)

	count, err := b.counter.CountSince(ctx, midnight)
	if err != nil {
		return false, err
	}
	return count < b.cfg.MaxReachOutsPerDay, nil
}

// CanDeliver reports whether an immediate send is allowed right now.
// URGENT bypasses everything; everything else respects quiet hours first,
// then the daily budget.
func (b *BudgetManager) CanDeliver(ctx context.Context, insight model.Insight, now time.Time) (bool, error) {
	if insight.Priority == model.PriorityUrgent {
		return true, nil
	}
	if b.IsQuietHours(now) {
		return false, nil
	}
	return b.HasBudget(ctx, now)
}

// Status summarizes the current budget for observability endpoints.
func (b *BudgetManager) Status(ctx context.Context, now time.Time) map[string]any {
	local := now.In(b.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.loc)

	count, err := b.counter.CountSince(ctx, midnight)
	if err != nil {
		b.logger.Warn("Failed to read budget count", zap.Error(err))
	}

	return map[string]any{
		"date":           local.Format("2006-01-02"),
		"used":           count,
		"max":            b.cfg.MaxReachOutsPerDay,
		"is_quiet_hours": b.IsQuietHours(now),
	}
}
