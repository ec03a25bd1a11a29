package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ReportSendRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReportSendRepository(db *pgxpool.Pool, logger *zap.Logger) *ReportSendRepository {
	return &ReportSendRepository{db: db, logger: logger}
}

// Exists reports whether a marker is already present for the period.
func (r *ReportSendRepository) Exists(ctx context.Context, reportName, periodKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM report_sends WHERE report_name = $1 AND period_key = $2)`,
		reportName, periodKey,
	).Scan(&exists)
	return exists, err
}

// Mark writes the send marker. A uniqueness conflict means another tick
// already sent the report for this period; that is not an error.
func (r *ReportSendRepository) Mark(ctx context.Context, reportName, periodKey string, at time.Time) error {
	query := `
        INSERT INTO report_sends (report_name, period_key, sent_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (report_name, period_key) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, reportName, periodKey, at)
	if err != nil {
		r.logger.Error("Failed to mark report sent",
			zap.String("report", reportName),
			zap.String("period_key", periodKey),
			zap.Error(err),
		)
	}
	return err
}
