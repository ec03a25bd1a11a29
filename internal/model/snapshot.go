package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable point-in-time capture from one collector.
type Snapshot struct {
	ID        string
	Collector string
	Timestamp time.Time
	Data      map[string]any
}

// NewSnapshot wraps collector output with identity and capture time.
func NewSnapshot(collector string, at time.Time, data map[string]any) Snapshot {
	return Snapshot{
		ID:        uuid.NewString(),
		Collector: collector,
		Timestamp: at,
		Data:      data,
	}
}
