// Package engine runs the collect, analyze, decide, deliver cycle on a
// single goroutine. Serial ticks keep ordering simple; only the outer
// HTTP surface runs concurrently with the loop.
package engine

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"insightd/internal/analyzer"
	"insightd/internal/collector"
	"insightd/internal/config"
	"insightd/internal/delivery"
	"insightd/internal/model"
	"insightd/pkg/metrics"
)

// SnapshotStore is the snapshot persistence surface the loop needs.
type SnapshotStore interface {
	Insert(ctx context.Context, s model.Snapshot) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Engine owns the tick loop and the per-collector / per-analyzer
// schedule state.
type Engine struct {
	cfg        *config.Config
	collectors *collector.Registry
	analyzers  []analyzer.Analyzer
	snapshots  SnapshotStore
	manager    *delivery.Manager
	reporter   *delivery.Reporter
	logger     *zap.Logger
	now        func() time.Time

	lastCollect map[string]time.Time
	lastAnalyze map[string]time.Time
	lastPurge   time.Time
}

func New(
	cfg *config.Config,
	collectors *collector.Registry,
	analyzers []analyzer.Analyzer,
	snapshots SnapshotStore,
	manager *delivery.Manager,
	reporter *delivery.Reporter,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:         cfg,
		collectors:  collectors,
		analyzers:   analyzers,
		snapshots:   snapshots,
		manager:     manager,
		reporter:    reporter,
		logger:      logger,
		now:         time.Now,
		lastCollect: make(map[string]time.Time),
		lastAnalyze: make(map[string]time.Time),
	}
}

// Run ticks until the context is cancelled. A tick that panics is
// logged and the loop keeps going; one bad analyzer must not take the
// daemon down.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.Engine.TickSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Engine started",
		zap.Duration("tick", interval),
		zap.Int("collectors", len(e.collectors.All())),
		zap.Int("analyzers", len(e.analyzers)),
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopping")
			return
		case <-ticker.C:
			e.safeTick(ctx)
		}
	}
}

func (e *Engine) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Tick panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	e.Tick(ctx)
}

// Tick runs one full cycle. Exported so tests can drive the engine
// without the ticker.
func (e *Engine) Tick(ctx context.Context) {
	start := e.now()
	defer func() { metrics.RecordCycle(e.now().Sub(start)) }()

	batch := e.collect(ctx, start)

	var insights []model.Insight
	if len(batch) > 0 {
		insights = append(insights, e.runRealtime(ctx, batch)...)
	}
	insights = append(insights, e.runPeriodic(ctx, batch, start)...)

	if len(insights) > 0 {
		stats := e.manager.Process(ctx, insights)
		e.logger.Info("Tick processed insights",
			zap.Int("total", len(insights)),
			zap.Int("delivered", stats.Delivered),
			zap.Int("batched", stats.Batched),
			zap.Int("queued", stats.Queued),
			zap.Int("skipped", stats.Skipped),
		)
	}

	if e.manager.QueueLen() > 0 {
		e.manager.ProcessQueued(ctx)
	}

	e.reporter.CheckDue(ctx)
	e.maybePurge(ctx, start)
}

// collect runs every due collector and returns the data that came back.
// A failed collector keeps its previous lastRun so the next tick
// retries instead of waiting a full interval.
func (e *Engine) collect(ctx context.Context, now time.Time) analyzer.Batch {
	timeout := e.collectorTimeout()
	batch := make(analyzer.Batch)

	for _, c := range e.collectors.All() {
		ccfg := e.cfg.Collectors[c.Name()]
		if !ccfg.IsEnabled() {
			continue
		}
		if last, ok := e.lastCollect[c.Name()]; ok && now.Sub(last) < ccfg.Interval() {
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		data, err := c.Collect(cctx)
		cancel()

		if err != nil {
			metrics.RecordCollectorRun(c.Name(), "error")
			e.logger.Warn("Collector failed",
				zap.String("collector", c.Name()),
				zap.Error(err),
			)
			continue
		}

		e.lastCollect[c.Name()] = now
		if data == nil {
			metrics.RecordCollectorRun(c.Name(), "empty")
			continue
		}
		metrics.RecordCollectorRun(c.Name(), "success")

		batch[c.Name()] = data
		snap := model.NewSnapshot(c.Name(), now, data)
		if err := e.snapshots.Insert(ctx, snap); err != nil {
			e.logger.Error("Failed to persist snapshot",
				zap.String("collector", c.Name()),
				zap.Error(err),
			)
			continue
		}
		metrics.SnapshotsPersisted.WithLabelValues(c.Name()).Inc()
	}
	return batch
}

// runRealtime feeds fresh data to every per-tick analyzer. One failing
// analyzer never blocks the others.
func (e *Engine) runRealtime(ctx context.Context, batch analyzer.Batch) []model.Insight {
	var out []model.Insight
	for _, a := range e.analyzers {
		if _, periodic := a.(analyzer.Periodic); periodic {
			continue
		}
		out = append(out, e.runOne(ctx, a, batch)...)
	}
	return out
}

// runPeriodic runs cadence-bound analyzers whose interval has elapsed.
func (e *Engine) runPeriodic(ctx context.Context, batch analyzer.Batch, now time.Time) []model.Insight {
	var out []model.Insight
	for _, a := range e.analyzers {
		p, ok := a.(analyzer.Periodic)
		if !ok {
			continue
		}
		if last, ran := e.lastAnalyze[a.Name()]; ran && now.Sub(last) < p.Interval() {
			continue
		}
		e.lastAnalyze[a.Name()] = now
		out = append(out, e.runOne(ctx, a, batch)...)
	}
	return out
}

func (e *Engine) runOne(ctx context.Context, a analyzer.Analyzer, batch analyzer.Batch) []model.Insight {
	if !a.Enabled() {
		return nil
	}
	insights, err := a.Analyze(ctx, batch)
	if err != nil {
		metrics.AnalyzerErrors.WithLabelValues(a.Name()).Inc()
		e.logger.Error("Analyzer failed",
			zap.String("analyzer", a.Name()),
			zap.Error(err),
		)
		return nil
	}
	if len(insights) > 0 {
		metrics.AnalyzerInsights.WithLabelValues(a.Name()).Add(float64(len(insights)))
	}
	return insights
}

// maybePurge drops snapshots past the retention window, at most once a
// day.
func (e *Engine) maybePurge(ctx context.Context, now time.Time) {
	if !e.lastPurge.IsZero() && now.Sub(e.lastPurge) < 24*time.Hour {
		return
	}
	e.lastPurge = now

	cutoff := now.AddDate(0, 0, -e.cfg.Engine.SnapshotRetentionDays)
	deleted, err := e.snapshots.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		e.logger.Error("Snapshot purge failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		e.logger.Info("Purged old snapshots", zap.Int64("deleted", deleted))
	}
}

func (e *Engine) collectorTimeout() time.Duration {
	if e.cfg.Engine.CollectorTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.cfg.Engine.CollectorTimeoutSeconds) * time.Second
}
