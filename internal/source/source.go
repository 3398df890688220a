package source

import (
	"context"
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
)

// LogSource fetches raw log lines of a log-based resource
type LogSource interface {
	FetchLogs(ctx context.Context, res domain.Resource, since, until time.Time) ([]domain.LogLine, error)
}

// RunSource fetches raw run documents (one JSON object each) of an API-based resource
type RunSource interface {
	FetchRuns(ctx context.Context, res domain.Resource, since, until time.Time) ([][]byte, error)
}

// Source provides both kinds of raw telemetry
type Source interface {
	LogSource
	RunSource
}
