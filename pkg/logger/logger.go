package logger

import (
	"go.uber.org/zap"
)

// NewLogger builds the production zap logger used by every component.
func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// NewDevelopment builds a human-readable logger for local runs.
func NewDevelopment() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return l
}
