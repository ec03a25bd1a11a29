package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryRecord is append-only evidence that an insight was sent.
// Recording one IS the budget consumption; there is no separate counter.
type DeliveryRecord struct {
	ID          string
	InsightID   string
	Channel     string
	DeliveredAt time.Time
}

func NewDeliveryRecord(insightID, channel string, at time.Time) DeliveryRecord {
	return DeliveryRecord{
		ID:          uuid.NewString(),
		InsightID:   insightID,
		Channel:     channel,
		DeliveredAt: at,
	}
}

// ReportSendMarker records that a scheduled report went out for a period.
// At most one marker exists per (report, period) pair.
type ReportSendMarker struct {
	ReportName string
	PeriodKey  string
	SentAt     time.Time
}
