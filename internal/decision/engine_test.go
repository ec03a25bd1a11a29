package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"insightd/internal/config"
	"insightd/internal/model"
)

type fakeCounter struct {
	count int
	err   error
}

func (f *fakeCounter) CountSince(ctx context.Context, since time.Time) (int, error) {
	return f.count, f.err
}

type fakeHistory struct {
	last *time.Time
	err  error
}

func (f *fakeHistory) LastByDedupeKey(ctx context.Context, key string) (*time.Time, error) {
	return f.last, f.err
}

func testConfig() config.DecisionConfig {
	return config.DecisionConfig{
		MaxReachOutsPerDay: 5,
		QuietHoursStart:    22,
		QuietHoursEnd:      8,
		CooldownMinutes:    60,
	}
}

func newTestEngine(t *testing.T, counter *fakeCounter, history *fakeHistory) *Engine {
	t.Helper()
	log := zap.NewNop()
	budget := NewBudgetManager(testConfig(), counter, time.UTC, log)
	dedup := NewDeduper(nil, history, time.Hour, log)
	return NewEngine(budget, dedup, log)
}

func testInsight(priority model.Priority) model.Insight {
	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return model.NewInsight("Disk filling up", "Disk at 92%", priority, model.CategorySystem, created)
}

func TestDecideExpiredInsightSkipped(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	insight := testInsight(model.PriorityUrgent)
	expired := now.Add(-time.Minute)
	insight.ExpiresAt = &expired

	action, reason := engine.Decide(context.Background(), insight, now)
	assert.Equal(t, ActionSkip, action)
	assert.Equal(t, "expired", reason)
}

func TestDecideNoExpiryNeverExpires(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	insight := testInsight(model.PriorityUrgent)
	require.Nil(t, insight.ExpiresAt)

	action, _ := engine.Decide(context.Background(), insight, now.AddDate(1, 0, 0))
	assert.Equal(t, ActionDeliverNow, action)
}

func TestDecideUrgentBypassesQuietHoursAndBudget(t *testing.T) {
	// Budget exhausted and deep inside quiet hours.
	engine := newTestEngine(t, &fakeCounter{count: 100}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityUrgent), now)
	assert.Equal(t, ActionDeliverNow, action)
	assert.Equal(t, "urgent_priority", reason)
}

func TestDecideHighDeliversWithBudget(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 2}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityHigh), now)
	assert.Equal(t, ActionDeliverNow, action)
	assert.Equal(t, "high_priority", reason)
}

func TestDecideHighBatchedDuringQuietHours(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 0}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityHigh), now)
	assert.Equal(t, ActionBatchReport, action)
	assert.Equal(t, "quiet_hours", reason)
}

func TestDecideHighBatchedWhenBudgetExhausted(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 5}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityHigh), now)
	assert.Equal(t, ActionBatchReport, action)
	assert.Equal(t, "budget_exhausted", reason)
}

func TestDecideMediumDeliversWithBudget(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 4}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityMedium), now)
	assert.Equal(t, ActionDeliverNow, action)
	assert.Equal(t, "medium_with_budget", reason)
}

func TestDecideMediumBatchedDuringQuietHours(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 0}, &fakeHistory{})
	now := time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityMedium), now)
	assert.Equal(t, ActionBatchReport, action)
	assert.Equal(t, "quiet_hours", reason)
}

func TestDecideMediumBatchedWhenBudgetExhausted(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 5}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityMedium), now)
	assert.Equal(t, ActionBatchReport, action)
	assert.Equal(t, "budget_exhausted", reason)
}

func TestDecideLowAlwaysBatched(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{count: 0}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	action, reason := engine.Decide(context.Background(), testInsight(model.PriorityLow), now)
	assert.Equal(t, ActionBatchReport, action)
	assert.Equal(t, "low_priority", reason)
}

func TestDecideDuplicateWithinCooldownSkipped(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Minute)
	engine := newTestEngine(t, &fakeCounter{}, &fakeHistory{last: &last})

	insight := testInsight(model.PriorityHigh)
	insight.DedupeKey = "disk_high"

	action, reason := engine.Decide(context.Background(), insight, now)
	assert.Equal(t, ActionSkip, action)
	assert.Equal(t, "duplicate", reason)
}

func TestDecideDuplicateOutsideCooldownAllowed(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	engine := newTestEngine(t, &fakeCounter{count: 0}, &fakeHistory{last: &last})

	insight := testInsight(model.PriorityHigh)
	insight.DedupeKey = "disk_high"

	action, _ := engine.Decide(context.Background(), insight, now)
	assert.Equal(t, ActionDeliverNow, action)
}

func TestDecideBudgetErrorDegradesToBatch(t *testing.T) {
	engine := newTestEngine(t, &fakeCounter{err: errors.New("db down")}, &fakeHistory{})
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for _, p := range []model.Priority{model.PriorityHigh, model.PriorityMedium} {
		action, reason := engine.Decide(context.Background(), testInsight(p), now)
		assert.Equal(t, ActionBatchReport, action)
		assert.Equal(t, "budget_unavailable", reason)
	}
}
