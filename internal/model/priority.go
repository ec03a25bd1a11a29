package model

import "fmt"

// Priority orders insights from digest-only up to interrupt-anything.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority parses the stored string form.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "LOW":
		return PriorityLow, nil
	case "MEDIUM":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	case "URGENT":
		return PriorityUrgent, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

// Category tags an insight with its source domain.
type Category string

const (
	CategoryHealth   Category = "HEALTH"
	CategorySystem   Category = "SYSTEM"
	CategoryCalendar Category = "CALENDAR"
	CategoryWeather  Category = "WEATHER"
)
