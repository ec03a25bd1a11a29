package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"insightd/internal/model"
)

type InsightRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInsightRepository(db *pgxpool.Pool, logger *zap.Logger) *InsightRepository {
	return &InsightRepository{db: db, logger: logger}
}

// Insert persists an insight. Re-inserting the same ID is a no-op so
// delivery retries stay idempotent.
func (r *InsightRepository) Insert(ctx context.Context, i model.Insight) error {
	data, err := json.Marshal(i.Data)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO insights
            (id, title, message, priority, category, confidence, source,
             created_at, expires_at, dedupe_key, delivered, data_json)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (id) DO NOTHING
    `
	_, err = r.db.Exec(ctx, query,
		i.ID, i.Title, i.Message, i.Priority.String(), string(i.Category),
		i.Confidence, i.Source, i.CreatedAt, i.ExpiresAt, i.DedupeKey,
		i.Delivered, data,
	)
	if err != nil {
		r.logger.Error("Failed to insert insight",
			zap.String("title", i.Title),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ListUndelivered returns undelivered insights created since the given
// time, oldest first. These are the batched candidates for the next
// scheduled report.
func (r *InsightRepository) ListUndelivered(ctx context.Context, since time.Time) ([]model.Insight, error) {
	query := `
        SELECT id, title, message, priority, category, confidence, source,
               created_at, expires_at, dedupe_key, delivered, data_json
        FROM insights
        WHERE delivered = FALSE AND created_at >= $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		var i model.Insight
		var priority string
		var category string
		var data []byte
		if err := rows.Scan(&i.ID, &i.Title, &i.Message, &priority, &category,
			&i.Confidence, &i.Source, &i.CreatedAt, &i.ExpiresAt, &i.DedupeKey,
			&i.Delivered, &data); err != nil {
			return nil, err
		}
		p, err := model.ParsePriority(priority)
		if err != nil {
			r.logger.Warn("Skipping insight with bad priority",
				zap.String("id", i.ID),
				zap.String("priority", priority),
			)
			continue
		}
		i.Priority = p
		i.Category = model.Category(category)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &i.Data); err != nil {
				return nil, err
			}
		}
		insights = append(insights, i)
	}
	return insights, rows.Err()
}

// MarkDelivered flips the delivered flag for the given insights.
func (r *InsightRepository) MarkDelivered(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE insights SET delivered = TRUE WHERE id = ANY($1)`, ids)
	return err
}
