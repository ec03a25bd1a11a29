package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is applied at startup. Everything is idempotent so restarts and
// concurrent instances are safe.
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id         TEXT PRIMARY KEY,
    collector  TEXT NOT NULL,
    timestamp  TIMESTAMPTZ NOT NULL,
    data_json  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_collector_ts ON snapshots(collector, timestamp);

CREATE TABLE IF NOT EXISTS insights (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    message     TEXT NOT NULL,
    priority    TEXT NOT NULL,
    category    TEXT NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    source      TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ,
    dedupe_key  TEXT NOT NULL DEFAULT '',
    delivered   BOOLEAN NOT NULL DEFAULT FALSE,
    data_json   JSONB
);
CREATE INDEX IF NOT EXISTS idx_insights_created ON insights(created_at);
CREATE INDEX IF NOT EXISTS idx_insights_dedupe ON insights(dedupe_key);
CREATE INDEX IF NOT EXISTS idx_insights_delivered ON insights(delivered);

CREATE TABLE IF NOT EXISTS deliveries (
    id           TEXT PRIMARY KEY,
    insight_id   TEXT NOT NULL REFERENCES insights(id),
    channel      TEXT NOT NULL,
    delivered_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_insight ON deliveries(insight_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_at ON deliveries(delivered_at);

CREATE TABLE IF NOT EXISTS report_sends (
    report_name TEXT NOT NULL,
    period_key  TEXT NOT NULL,
    sent_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (report_name, period_key)
);
`

// InitSchema creates the tables the store needs.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
