package registry

import (
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/store"
)

// TableQuery reads a type's metrics table for a window
type TableQuery struct {
	Type domain.ResourceType
	// OnlyFailures restricts the read to failed rows
	OnlyFailures bool
}

// Build returns the read of resources' rows in (since, until]
func (b TableQuery) Build(resources []string, since, until time.Time) domain.Query {
	names := make([]string, len(resources))
	copy(names, resources)
	return domain.Query{
		Type:         b.Type,
		Table:        store.TableName(b.Type),
		Resources:    names,
		Since:        since,
		Until:        until,
		OnlyFailures: b.OnlyFailures,
	}
}
