package store

import (
	"context"
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Store is the metrics store the engine reads checkpoints from and writes rows to
type Store interface {
	// MaxTime returns the latest recorded row time of a resource; ok is false when
	// nothing was recorded yet
	MaxTime(ctx context.Context, rt domain.ResourceType, resource string) (t time.Time, ok bool, err error)
	// MaxTimes returns the latest recorded row time of every resource of a type
	MaxTimes(ctx context.Context, rt domain.ResourceType) (map[string]time.Time, error)
	// EarliestWritableTime is the retention floor: older rows are neither kept nor accepted
	EarliestWritableTime(ctx context.Context) (time.Time, error)
	// IsEmpty reports whether a metrics table holds no rows
	IsEmpty(ctx context.Context, table string) (bool, error)
	// Query reads already-written rows
	Query(ctx context.Context, q domain.Query) ([]domain.MetricRow, error)
	// Write stores rows and returns how many were new
	Write(ctx context.Context, rt domain.ResourceType, rows []domain.MetricRow) (int, error)
}

// TableName returns the metrics table of a resource type
func TableName(rt domain.ResourceType) string {
	return string(rt) + "_metrics"
}
