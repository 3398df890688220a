// Package registry maps every resource type to the extractor, query builder and
// link formatter that handle it, so callers never branch on the type themselves.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/correlate"
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/rollup"
	"github.com/vburojevic/runwatch/internal/source"
)

// Extractor turns one resource's raw telemetry for (since, until] into metric rows
type Extractor interface {
	Extract(ctx context.Context, src source.Source, res domain.Resource, since, until time.Time) ([]domain.MetricRow, error)
}

// QueryBuilder builds the store read of a digest window
type QueryBuilder interface {
	Build(resources []string, since, until time.Time) domain.Query
}

// Handler is everything needed to process one resource type
type Handler struct {
	Type      domain.ResourceType
	Extractor Extractor
	Query     QueryBuilder
	Links     rollup.LinkFormatter
}

// Registry holds one handler per resource type
type Registry struct {
	handlers map[domain.ResourceType]Handler
}

// New creates an empty registry
func New() *Registry {
	return &Registry{handlers: make(map[domain.ResourceType]Handler)}
}

// Register adds a handler. Unknown tags, duplicates and incomplete handlers are rejected.
func (r *Registry) Register(h Handler) error {
	if !h.Type.Valid() {
		return &domain.UnknownTypeError{Type: h.Type}
	}
	if _, exists := r.handlers[h.Type]; exists {
		return fmt.Errorf("handler for %s already registered", h.Type)
	}
	if h.Extractor == nil || h.Query == nil {
		return fmt.Errorf("handler for %s needs an extractor and a query builder", h.Type)
	}
	r.handlers[h.Type] = h
	return nil
}

// Get returns the handler of a type
func (r *Registry) Get(rt domain.ResourceType) (Handler, error) {
	h, ok := r.handlers[rt]
	if !ok {
		return Handler{}, &domain.UnknownTypeError{Type: rt}
	}
	return h, nil
}

// Types returns the registered types in stable order
func (r *Registry) Types() []domain.ResourceType {
	out := make([]domain.ResourceType, 0, len(r.handlers))
	for rt := range r.handlers {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks that every supported resource type has a handler
func (r *Registry) Validate() error {
	var errs []error
	for _, rt := range domain.AllResourceTypes() {
		if _, ok := r.handlers[rt]; !ok {
			errs = append(errs, fmt.Errorf("no handler for %s", rt))
		}
	}
	return errors.Join(errs...)
}

// Default builds the registry of every supported resource type
func Default(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	correlator := correlate.NewCorrelator(logger.Named("correlate"))

	r := New()
	for _, h := range []Handler{
		{Type: domain.ResourceGlueJobs, Extractor: NewRowExtractor(ParseGlueJobRun, logger)},
		{Type: domain.ResourceGlueWorkflows, Extractor: NewRowExtractor(ParseGlueWorkflowRun, logger)},
		{Type: domain.ResourceStepFunctions, Extractor: NewRowExtractor(ParseStepFunctionExecution, logger)},
		{Type: domain.ResourceLambdaFunctions, Extractor: NewLogExtractor(correlator)},
		{Type: domain.ResourceSQSQueues, Extractor: NewRowExtractor(ParseQueueSnapshot, logger)},
		{Type: domain.ResourceGlueDataQuality, Extractor: NewRowExtractor(ParseDataQualityResult, logger)},
	} {
		h.Query = TableQuery{Type: h.Type}
		h.Links = ConsoleLinks{Type: h.Type}
		if err := r.Register(h); err != nil {
			// The table above only holds supported types, each once.
			panic(err)
		}
	}
	return r
}
