package model

import (
	"time"

	"github.com/google/uuid"
)

// Insight is a candidate notification produced by an analyzer. Immutable
// after creation; it is consumed exactly once by the decision engine.
type Insight struct {
	ID         string
	Title      string
	Message    string
	Priority   Priority
	Category   Category
	Confidence float64
	Source     string // emitting analyzer
	CreatedAt  time.Time
	ExpiresAt  *time.Time // nil means never expires
	DedupeKey  string     // empty means no dedup
	Delivered  bool
	Data       map[string]any
}

// NewInsight builds an insight with a fresh ID and full confidence.
func NewInsight(title, message string, priority Priority, category Category, now time.Time) Insight {
	return Insight{
		ID:         uuid.NewString(),
		Title:      title,
		Message:    message,
		Priority:   priority,
		Category:   category,
		Confidence: 1.0,
		CreatedAt:  now,
	}
}

// IsExpired reports whether the insight may no longer be delivered.
func (i Insight) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}
