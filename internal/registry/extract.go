package registry

import (
	"context"
	"slices"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/correlate"
	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/source"
)

// LogExtractor reconstructs executions from log lines
type LogExtractor struct {
	correlator *correlate.Correlator
}

// NewLogExtractor creates a log-based extractor
func NewLogExtractor(c *correlate.Correlator) *LogExtractor {
	return &LogExtractor{correlator: c}
}

// Extract fetches the window's lines and correlates them into rows
func (e *LogExtractor) Extract(ctx context.Context, src source.Source, res domain.Resource, since, until time.Time) ([]domain.MetricRow, error) {
	lines, err := src.FetchLogs(ctx, res, since, until)
	if err != nil {
		return nil, err
	}
	lines = correlate.Window(lines, since, until)
	return correlate.ToMetricRows(e.correlator.CorrelateAll(res.Name, lines)), nil
}

// Correlator returns the underlying correlator
func (e *LogExtractor) Correlator() *correlate.Correlator {
	return e.correlator
}

// RowParser converts one raw run document into a row. ok is false for documents
// that are malformed or describe a run that has not finished yet.
type RowParser func(res domain.Resource, doc gjson.Result) (row domain.MetricRow, ok bool)

// RowExtractor parses run documents returned by a cloud API
type RowExtractor struct {
	parse  RowParser
	logger *zap.Logger
}

// NewRowExtractor creates a row-based extractor
func NewRowExtractor(parse RowParser, logger *zap.Logger) *RowExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowExtractor{parse: parse, logger: logger}
}

// Extract fetches the window's run documents and parses them into rows
func (e *RowExtractor) Extract(ctx context.Context, src source.Source, res domain.Resource, since, until time.Time) ([]domain.MetricRow, error) {
	docs, err := src.FetchRuns(ctx, res, since, until)
	if err != nil {
		return nil, err
	}
	return e.Parse(res, docs), nil
}

// Parse converts documents to rows ordered by time, skipping the ones the parser rejects
func (e *RowExtractor) Parse(res domain.Resource, docs [][]byte) []domain.MetricRow {
	rows := make([]domain.MetricRow, 0, len(docs))
	skipped := 0
	for _, raw := range docs {
		if !gjson.ValidBytes(raw) {
			skipped++
			continue
		}
		row, ok := e.parse(res, gjson.ParseBytes(raw))
		if !ok {
			skipped++
			continue
		}
		row.ResourceName = res.Name
		rows = append(rows, row)
	}
	if skipped > 0 {
		e.logger.Debug("skipped run documents",
			zap.String("resource", res.Key()),
			zap.Int("skipped", skipped),
			zap.Int("parsed", len(rows)),
		)
	}
	slices.SortStableFunc(rows, func(a, b domain.MetricRow) int {
		return a.Time.Compare(b.Time)
	})
	return rows
}
