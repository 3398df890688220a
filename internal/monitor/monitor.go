// Package monitor drives one extraction or digest cycle over a batch of resources.
package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/runwatch/internal/checkpoint"
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/registry"
	"github.com/vburojevic/runwatch/internal/rollup"
	"github.com/vburojevic/runwatch/internal/source"
	"github.com/vburojevic/runwatch/internal/store"
)

// DefaultWorkers bounds concurrent resource tasks when Options.Workers is unset
const DefaultWorkers = 8

// Payloads carries caller-supplied checkpoints per resource type
type Payloads map[domain.ResourceType]checkpoint.Payload

// Options configures a Monitor
type Options struct {
	Workers int
	Clock   clock.Clock
	Logger  *zap.Logger
}

// Monitor runs extraction and digest cycles
type Monitor struct {
	registry    *registry.Registry
	store       store.Store
	source      source.Source
	coordinator *checkpoint.Coordinator
	workers     int
	clock       clock.Clock
	logger      *zap.Logger
}

// New creates a monitor
func New(reg *registry.Registry, st store.Store, src source.Source, opts Options) *Monitor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		registry:    reg,
		store:       st,
		source:      src,
		coordinator: checkpoint.NewCoordinator(st, opts.Logger.Named("checkpoint")),
		workers:     opts.Workers,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// ResourceResult is the outcome of one resource's extraction
type ResourceResult struct {
	Resource domain.Resource `json:"resource"`
	Since    time.Time       `json:"since"`
	// Extracted counts parsed rows, Written the ones new to the store.
	// Dropped rows fell behind the retention floor while the fetch ran.
	Extracted int                     `json:"extracted"`
	Written   int                     `json:"written"`
	Dropped   int                     `json:"dropped,omitempty"`
	Alert     *domain.AggregatedEntry `json:"alert,omitempty"`
	Err       error                   `json:"-"`
}

// Failed reports whether the resource's cycle failed
func (r ResourceResult) Failed() bool {
	return r.Err != nil
}

// Alerting reports whether the new rows warrant an alert
func (r ResourceResult) Alerting() bool {
	return r.Alert != nil && r.Alert.Status() != domain.StatusOK
}

// ExtractReport is the outcome of one extraction cycle
type ExtractReport struct {
	Until   time.Time        `json:"until"`
	Results []ResourceResult `json:"results"`
	// Partial is set when the context ended before every resource finished
	Partial bool `json:"partial"`
}

// Failures returns a note per failed resource
func (r ExtractReport) Failures() []domain.FailureNote {
	var notes []domain.FailureNote
	for _, res := range r.Results {
		if res.Err != nil {
			notes = append(notes, noteFor(res.Resource, res.Err))
		}
	}
	return notes
}

// Err combines every resource failure into one error
func (r ExtractReport) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err)
	}
	return err
}

// task is one resource ready to be extracted
type task struct {
	res     domain.Resource
	handler registry.Handler
	since   time.Time
}

// Extract runs one incremental extraction cycle. Every resource's failure is
// kept in its result; the batch itself only stops early when ctx ends, in
// which case the finished resources are returned with Partial set.
func (m *Monitor) Extract(ctx context.Context, resources []domain.Resource, payloads Payloads) ExtractReport {
	until := m.clock.Now().UTC()
	report := ExtractReport{Until: until}

	tasks, failed := m.plan(ctx, resources, payloads)
	for _, r := range failed {
		if unfinished(ctx, r.Err) {
			report.Partial = true
			continue
		}
		report.Results = append(report.Results, r)
	}

	results := make(chan ResourceResult)
	var collected []ResourceResult
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := range results {
			collected = append(collected, r)
		}
	}()

	var g errgroup.Group
	g.SetLimit(m.workers)
	started := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			r := m.extractOne(ctx, t, until)
			if unfinished(ctx, r.Err) {
				return nil
			}
			results <- r
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	wg.Wait()

	report.Results = append(report.Results, collected...)
	report.Partial = report.Partial || started < len(tasks) || len(collected) < started
	sortResults(report.Results)

	m.logger.Info("extraction cycle finished",
		zap.Int("resources", len(resources)),
		zap.Int("finished", len(report.Results)),
		zap.Int("failed", len(report.Failures())),
		zap.Bool("partial", report.Partial),
	)
	return report
}

// plan resolves since-times per type. Resources that cannot be planned are
// returned as failed results.
func (m *Monitor) plan(ctx context.Context, resources []domain.Resource, payloads Payloads) ([]task, []ResourceResult) {
	var tasks []task
	var failed []ResourceResult

	for _, rt := range typesOf(resources) {
		batch := ofType(resources, rt)
		h, err := m.registry.Get(rt)
		if err != nil {
			for _, res := range batch {
				failed = append(failed, ResourceResult{Resource: res, Err: err})
			}
			continue
		}

		since, failures, err := m.coordinator.ResolveType(ctx, rt, batch, payloads[rt])
		if err != nil {
			m.logger.Warn("cannot resolve checkpoints", zap.String("type", string(rt)), zap.Error(err))
			for _, res := range batch {
				failed = append(failed, ResourceResult{Resource: res, Err: err})
			}
			continue
		}
		for _, res := range batch {
			if err, ok := failures[res.Name]; ok {
				failed = append(failed, ResourceResult{Resource: res, Err: err})
				continue
			}
			tasks = append(tasks, task{res: res, handler: h, since: since[res.Name]})
		}
	}
	return tasks, failed
}

func (m *Monitor) extractOne(ctx context.Context, t task, until time.Time) ResourceResult {
	res := t.res
	result := ResourceResult{Resource: res, Since: t.since}
	logger := m.logger.With(zap.String("resource", res.Key()))

	rows, err := t.handler.Extractor.Extract(ctx, m.source, res, t.since, until)
	if err != nil {
		result.Err = &domain.ResourceError{Type: res.Type, Resource: res.Name, Op: "extract", Err: err}
		logger.Warn("extraction failed", zap.Error(err))
		return result
	}
	result.Extracted = len(rows)

	written, dropped, err := m.writeAboveFloor(ctx, res.Type, rows)
	result.Dropped = dropped
	if dropped > 0 {
		logger.Warn("dropped rows behind the retention floor", zap.Int("rows", dropped))
	}
	if err != nil {
		result.Err = &domain.ResourceError{Type: res.Type, Resource: res.Name, Op: "write", Err: err}
		logger.Warn("write failed", zap.Error(err))
		return result
	}
	result.Written = written

	// Alerts cover only the new rows, so the run minimum does not apply.
	alertRes := res
	alertRes.MinRequiredRuns = 0
	entry := rollup.NewAggregator(t.handler.Links).Aggregate(alertRes, rows)
	result.Alert = &entry

	logger.Debug("extracted",
		zap.Time("since", t.since),
		zap.Int("rows", len(rows)),
		zap.Int("written", written),
		zap.String("status", string(entry.Status())),
	)
	return result
}

// writeAboveFloor writes the rows the store still accepts. The floor moves
// with the clock, so it is read after the fetch and read again when the store
// saw it move once more.
func (m *Monitor) writeAboveFloor(ctx context.Context, rt domain.ResourceType, rows []domain.MetricRow) (written, dropped int, err error) {
	for attempt := 0; ; attempt++ {
		floor, err := m.store.EarliestWritableTime(ctx)
		if err != nil {
			return 0, 0, err
		}
		writable := aboveFloor(rows, floor)
		written, err = m.store.Write(ctx, rt, writable)
		if errors.Is(err, domain.ErrBeforeRetention) && attempt == 0 {
			continue
		}
		return written, len(rows) - len(writable), err
	}
}

func aboveFloor(rows []domain.MetricRow, floor time.Time) []domain.MetricRow {
	out := rows[:0:0]
	for _, r := range rows {
		if !r.Time.Before(floor) {
			out = append(out, r)
		}
	}
	return out
}

// Prefetch reads the stored checkpoints of every resource type in the batch
func (m *Monitor) Prefetch(ctx context.Context, resources []domain.Resource) (Payloads, error) {
	out := make(Payloads)
	var errs error
	for _, rt := range typesOf(resources) {
		p, err := m.coordinator.Prefetch(ctx, rt)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[rt] = p
	}
	return out, errs
}

// unfinished reports whether err only says that ctx ended before the work did
func unfinished(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func typesOf(resources []domain.Resource) []domain.ResourceType {
	seen := make(map[domain.ResourceType]bool)
	var out []domain.ResourceType
	for _, r := range resources {
		if !seen[r.Type] {
			seen[r.Type] = true
			out = append(out, r.Type)
		}
	}
	return out
}

func ofType(resources []domain.Resource, rt domain.ResourceType) []domain.Resource {
	var out []domain.Resource
	for _, r := range resources {
		if r.Type == rt {
			out = append(out, r)
		}
	}
	return out
}

func noteFor(res domain.Resource, err error) domain.FailureNote {
	return domain.FailureNote{
		Type:     res.Type,
		Resource: res.Name,
		Group:    res.Group,
		Message:  err.Error(),
	}
}

func sortResults(results []ResourceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Resource.Type != results[j].Resource.Type {
			return results[i].Resource.Type < results[j].Resource.Type
		}
		return results[i].Resource.Name < results[j].Resource.Name
	})
}
