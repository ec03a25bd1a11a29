package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"insightd/internal/model"
)

type SnapshotRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSnapshotRepository(db *pgxpool.Pool, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

func (r *SnapshotRepository) Insert(ctx context.Context, s model.Snapshot) error {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO snapshots (id, collector, timestamp, data_json)
        VALUES ($1, $2, $3, $4)
    `
	_, err = r.db.Exec(ctx, query, s.ID, s.Collector, s.Timestamp, data)
	if err != nil {
		r.logger.Error("Failed to insert snapshot",
			zap.String("collector", s.Collector),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// RecentSnapshots returns snapshots for a collector since the given time,
// newest first.
func (r *SnapshotRepository) RecentSnapshots(ctx context.Context, collector string, since time.Time, limit int) ([]model.Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
        SELECT id, collector, timestamp, data_json
        FROM snapshots
        WHERE collector = $1 AND timestamp >= $2
        ORDER BY timestamp DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, collector, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		var data []byte
		if err := rows.Scan(&s.ID, &s.Collector, &s.Timestamp, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &s.Data); err != nil {
				return nil, err
			}
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// DeleteOlderThan purges snapshots past the retention window.
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM snapshots WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
