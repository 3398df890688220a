package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/rollup"
)

// DigestReport is the rollup of every resource over one digest window
type DigestReport struct {
	Since     time.Time                                              `json:"since"`
	Until     time.Time                                              `json:"until"`
	Results   []rollup.Result                                        `json:"results"`
	Summaries map[string]map[domain.ResourceType]domain.SummaryEntry `json:"summaries"`
	Failures  []domain.FailureNote                                   `json:"failures,omitempty"`
	Partial   bool                                                   `json:"partial"`
}

// Status returns the most severe status over all groups
func (r DigestReport) Status() domain.Status {
	status := domain.StatusOK
	for _, byType := range r.Summaries {
		if st := rollup.GroupStatus(byType); st.Priority() > status.Priority() {
			status = st
		}
	}
	if len(r.Failures) > 0 && status.Priority() < domain.StatusWarning.Priority() {
		status = domain.StatusWarning
	}
	return status
}

// typeDigest is the outcome of one resource type's store read
type typeDigest struct {
	results  []rollup.Result
	failures []domain.FailureNote
}

// Digest rolls up the stored rows of the window ending now. Each type is read
// with one store query; a failed read turns into failure notes for the type's
// resources while the other types are still reported.
func (m *Monitor) Digest(ctx context.Context, resources []domain.Resource, window time.Duration) DigestReport {
	until := m.clock.Now().UTC()
	since := until.Add(-window)
	report := DigestReport{Since: since, Until: until}

	var (
		mu      sync.Mutex
		digests []typeDigest
	)
	var g errgroup.Group
	g.SetLimit(m.workers)
	types := typesOf(resources)
	started := 0
	for _, rt := range types {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			d, done := m.digestType(ctx, rt, ofType(resources, rt), since, until)
			if !done {
				return nil
			}
			mu.Lock()
			digests = append(digests, d)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range digests {
		report.Results = append(report.Results, d.results...)
		report.Failures = append(report.Failures, d.failures...)
	}
	rollup.SortResults(report.Results)
	report.Summaries = rollup.GroupSummaries(report.Results)
	report.Partial = started < len(types) || len(digests) < started

	m.logger.Info("digest finished",
		zap.Time("since", since),
		zap.Time("until", until),
		zap.Int("resources", len(report.Results)),
		zap.Int("failures", len(report.Failures)),
		zap.String("status", string(report.Status())),
		zap.Bool("partial", report.Partial),
	)
	return report
}

// digestType aggregates one type. done is false when ctx ended first.
func (m *Monitor) digestType(ctx context.Context, rt domain.ResourceType, batch []domain.Resource, since, until time.Time) (typeDigest, bool) {
	var d typeDigest

	h, err := m.registry.Get(rt)
	if err != nil {
		for _, res := range batch {
			d.failures = append(d.failures, noteFor(res, err))
		}
		return d, true
	}

	names := make([]string, 0, len(batch))
	for _, res := range batch {
		names = append(names, res.Name)
	}
	rows, err := m.store.Query(ctx, h.Query.Build(names, since, until))
	if err != nil {
		if unfinished(ctx, err) {
			return d, false
		}
		m.logger.Warn("digest query failed", zap.String("type", string(rt)), zap.Error(err))
		for _, res := range batch {
			d.failures = append(d.failures, noteFor(res, &domain.ResourceError{Type: rt, Resource: res.Name, Op: "query", Err: err}))
		}
		return d, true
	}

	byResource := make(map[string][]domain.MetricRow, len(batch))
	for _, row := range rows {
		byResource[row.ResourceName] = append(byResource[row.ResourceName], row)
	}

	agg := rollup.NewAggregator(h.Links)
	for _, res := range batch {
		d.results = append(d.results, rollup.NewResult(res, agg.Aggregate(res, byResource[res.Name])))
	}
	return d, true
}
