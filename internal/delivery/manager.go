// Package delivery executes decision verdicts: immediate sends, digest
// batching, and the retry queue for transport failures.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"insightd/internal/decision"
	"insightd/internal/model"
	"insightd/pkg/circuitbreaker"
	"insightd/pkg/metrics"
	"insightd/pkg/util"
)

// InsightStore is the persistence surface the manager writes through.
type InsightStore interface {
	Insert(ctx context.Context, i model.Insight) error
	MarkDelivered(ctx context.Context, ids []string) error
}

// DeliveryStore records successful sends.
type DeliveryStore interface {
	Insert(ctx context.Context, d model.DeliveryRecord) error
}

// Stats aggregates one processing pass for observability. Individual
// failures never raise; they show up here and in the logs.
type Stats struct {
	Delivered int
	Batched   int
	Queued    int
	Skipped   int
}

// Manager routes insights through the decision engine and dispatches
// the verdicts.
type Manager struct {
	decision   *decision.Engine
	channel    Channel
	breaker    *circuitbreaker.CircuitBreaker
	insights   InsightStore
	deliveries DeliveryStore
	logger     *zap.Logger
	now        func() time.Time

	queue []model.Insight
}

func NewManager(
	dec *decision.Engine,
	channel Channel,
	breaker *circuitbreaker.CircuitBreaker,
	insights InsightStore,
	deliveries DeliveryStore,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		decision:   dec,
		channel:    channel,
		breaker:    breaker,
		insights:   insights,
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs a batch of insights through decide-then-dispatch.
func (m *Manager) Process(ctx context.Context, insights []model.Insight) Stats {
	var stats Stats
	now := m.now()

	for _, insight := range insights {
		action, _ := m.decision.Decide(ctx, insight, now)

		switch action {
		case decision.ActionDeliverNow:
			if err := m.deliverNow(ctx, insight, now); err != nil {
				retryable, kind := util.IsRetryableError(err)
				if !retryable && !errors.Is(err, circuitbreaker.ErrOpen) {
					m.logger.Error("Delivery failed permanently, dropping",
						zap.String("title", insight.Title),
						zap.String("error_type", kind),
						zap.Error(err),
					)
					stats.Skipped++
					continue
				}
				// Transient failure must not lose the information:
				// requeue and retry on a later tick.
				m.logger.Error("Delivery failed, queueing for retry",
					zap.String("title", insight.Title),
					zap.String("error_type", kind),
					zap.Error(err),
				)
				m.queue = append(m.queue, insight)
				stats.Queued++
				continue
			}
			stats.Delivered++

		case decision.ActionBatchReport:
			m.batchForReport(ctx, insight)
			stats.Batched++

		case decision.ActionQueueLater:
			m.queue = append(m.queue, insight)
			stats.Queued++

		case decision.ActionSkip:
			stats.Skipped++
		}
	}

	if stats != (Stats{}) {
		m.logger.Info("Processed insights",
			zap.Int("delivered", stats.Delivered),
			zap.Int("batched", stats.Batched),
			zap.Int("queued", stats.Queued),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return stats
}

// ProcessQueued re-submits queued insights to the decision engine.
// Expired entries are dropped here; conditions like quiet hours may
// still hold, in which case they simply queue again.
func (m *Manager) ProcessQueued(ctx context.Context) Stats {
	if len(m.queue) == 0 {
		return Stats{}
	}

	pending := m.queue
	m.queue = nil
	now := m.now()

	alive := pending[:0]
	dropped := 0
	for _, insight := range pending {
		if insight.IsExpired(now) {
			dropped++
			continue
		}
		alive = append(alive, insight)
	}
	if dropped > 0 {
		m.logger.Info("Dropped expired queued insights", zap.Int("count", dropped))
	}

	stats := m.Process(ctx, alive)
	stats.Skipped += dropped
	return stats
}

// QueueLen reports the current retry-queue depth.
func (m *Manager) QueueLen() int { return len(m.queue) }

func (m *Manager) deliverNow(ctx context.Context, insight model.Insight, now time.Time) error {
	text := FormatInsight(insight)

	err := m.breaker.Execute(func() error {
		return m.channel.Send(ctx, text)
	})
	if err != nil {
		metrics.RecordDelivery(m.channel.Name(), "failed")
		return err
	}

	metrics.RecordDelivery(m.channel.Name(), "success")

	// Persist evidence. The delivery record is the budget spend and the
	// dedup history in one.
	insight.Delivered = true
	if err := m.insights.Insert(ctx, insight); err != nil {
		m.logger.Error("Failed to persist delivered insight", zap.Error(err))
	} else {
		_ = m.insights.MarkDelivered(ctx, []string{insight.ID})
	}
	record := model.NewDeliveryRecord(insight.ID, m.channel.Name(), now)
	if err := m.deliveries.Insert(ctx, record); err != nil {
		m.logger.Error("Failed to persist delivery record", zap.Error(err))
	}

	m.decision.Dedup().Arm(ctx, insight.DedupeKey)

	m.logger.Info("Delivered insight",
		zap.String("title", insight.Title),
		zap.String("priority", insight.Priority.String()),
		zap.String("channel", m.channel.Name()),
	)
	return nil
}

func (m *Manager) batchForReport(ctx context.Context, insight model.Insight) {
	if err := m.insights.Insert(ctx, insight); err != nil {
		m.logger.Error("Failed to batch insight for report",
			zap.String("title", insight.Title),
			zap.Error(err),
		)
		return
	}
	m.logger.Debug("Batched insight for next report", zap.String("title", insight.Title))
}

// FormatInsight renders the plain-text notification body.
func FormatInsight(i model.Insight) string {
	return fmt.Sprintf("[%s] %s\n%s", i.Priority.String(), i.Title, i.Message)
}
