package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"insightd/internal/model"
)

type DeliveryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeliveryRepository(db *pgxpool.Pool, logger *zap.Logger) *DeliveryRepository {
	return &DeliveryRepository{db: db, logger: logger}
}

func (r *DeliveryRepository) Insert(ctx context.Context, d model.DeliveryRecord) error {
	query := `
        INSERT INTO deliveries (id, insight_id, channel, delivered_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err := r.db.Exec(ctx, query, d.ID, d.InsightID, d.Channel, d.DeliveredAt)
	if err != nil {
		r.logger.Error("Failed to insert delivery record",
			zap.String("insight_id", d.InsightID),
			zap.String("channel", d.Channel),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// CountSince counts delivery records at or after the given time. The
// budget manager calls this with local midnight to get today's count.
func (r *DeliveryRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM deliveries WHERE delivered_at >= $1`, since,
	).Scan(&count)
	return count, err
}

// LastByDedupeKey returns the most recent delivery time for any insight
// sharing the dedupe key, or nil when none exists.
func (r *DeliveryRepository) LastByDedupeKey(ctx context.Context, key string) (*time.Time, error) {
	query := `
        SELECT MAX(d.delivered_at)
        FROM deliveries d
        JOIN insights i ON i.id = d.insight_id
        WHERE i.dedupe_key = $1
    `
	var last *time.Time
	if err := r.db.QueryRow(ctx, query, key).Scan(&last); err != nil {
		return nil, err
	}
	return last, nil
}
