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

func newBudget(cfg config.DecisionConfig, counter *fakeCounter) *BudgetManager {
	return NewBudgetManager(cfg, counter, time.UTC, zap.NewNop())
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 15, 0, 0, time.UTC)
}

func TestIsQuietHoursWrapsMidnight(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{}) // 22 to 8

	for _, hour := range []int{22, 23, 0, 3, 7} {
		assert.True(t, b.IsQuietHours(at(hour)), "hour %d should be quiet", hour)
	}
	for _, hour := range []int{8, 12, 21} {
		assert.False(t, b.IsQuietHours(at(hour)), "hour %d should not be quiet", hour)
	}
}

func TestIsQuietHoursSameDayWindow(t *testing.T) {
	cfg := testConfig()
	cfg.QuietHoursStart = 13
	cfg.QuietHoursEnd = 15
	b := newBudget(cfg, &fakeCounter{})

	assert.True(t, b.IsQuietHours(at(13)))
	assert.True(t, b.IsQuietHours(at(14)))
	assert.False(t, b.IsQuietHours(at(15)))
	assert.False(t, b.IsQuietHours(at(12)))
}

func TestIsQuietHoursDisabledWhenStartEqualsEnd(t *testing.T) {
	cfg := testConfig()
	cfg.QuietHoursStart = 0
	cfg.QuietHoursEnd = 0
	b := newBudget(cfg, &fakeCounter{})

	for hour := 0; hour < 24; hour++ {
		assert.False(t, b.IsQuietHours(at(hour)))
	}
}

func TestHasBudgetExactlyAtCap(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{count: 5})

	ok, err := b.HasBudget(context.Background(), at(12))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasBudgetBelowCap(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{count: 4})

	ok, err := b.HasBudget(context.Background(), at(12))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasBudgetPropagatesStoreError(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{err: errors.New("db down")})

	_, err := b.HasBudget(context.Background(), at(12))
	assert.Error(t, err)
}

func TestCanDeliverUrgentDuringQuietHours(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{count: 100})

	insight := testInsight(model.PriorityUrgent)
	ok, err := b.CanDeliver(context.Background(), insight, at(23))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanDeliverHighSuppressedDuringQuietHours(t *testing.T) {
	b := newBudget(testConfig(), &fakeCounter{count: 0})

	insight := testInsight(model.PriorityHigh)
	ok, err := b.CanDeliver(context.Background(), insight, at(23))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanDeliverRespectsLocalTimezone(t *testing.T) {
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)

	b := NewBudgetManager(testConfig(), &fakeCounter{}, helsinki, zap.NewNop())

	// 21:00 UTC is 23:00 in Helsinki during winter time.
	utcEvening := time.Date(2026, 1, 10, 21, 0, 0, 0, time.UTC)
	assert.True(t, b.IsQuietHours(utcEvening))
}
