package correlate

import (
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Stats counts what happened to the lines of correlated windows
type Stats struct {
	Lines         int `json:"lines"`
	Ignored       int `json:"ignored"`
	DroppedErrors int `json:"dropped_errors"`
	Discarded     int `json:"discarded"`
	Emitted       int `json:"emitted"`
}

func (s *Stats) add(o Stats) {
	s.Lines += o.Lines
	s.Ignored += o.Ignored
	s.DroppedErrors += o.DroppedErrors
	s.Discarded += o.Discarded
	s.Emitted += o.Emitted
}

// Correlator turns ordered log lines into execution records. It is safe for
// concurrent use across resources; a single window is always consumed sequentially.
type Correlator struct {
	logger *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewCorrelator creates a correlator. A nil logger disables logging.
func NewCorrelator(logger *zap.Logger) *Correlator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Correlator{logger: logger}
}

// Correlate lazily reconstructs executions from the time-ordered lines of one
// resource's window. Only executions that saw a terminating line are yielded;
// executions still open when the lines run out belong to the next window.
func (c *Correlator) Correlate(resource string, lines iter.Seq[domain.LogLine]) iter.Seq[domain.ExecutionRecord] {
	return func(yield func(domain.ExecutionRecord) bool) {
		w := newWindow(resource)
		defer c.finish(resource, w)

		for line := range lines {
			rec, ok := w.consume(line)
			if ok && !yield(rec) {
				return
			}
		}
		for _, rec := range w.flush() {
			if !yield(rec) {
				return
			}
		}
	}
}

// CorrelateAll collects every record of a window
func (c *Correlator) CorrelateAll(resource string, lines []domain.LogLine) []domain.ExecutionRecord {
	return slices.Collect(c.Correlate(resource, slices.Values(lines)))
}

// Stats returns cumulative counters over all windows correlated so far
func (c *Correlator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Correlator) finish(resource string, w *window) {
	c.mu.Lock()
	c.stats.add(w.stats)
	c.mu.Unlock()

	c.logger.Debug("correlated window",
		zap.String("resource", resource),
		zap.Int("lines", w.stats.Lines),
		zap.Int("emitted", w.stats.Emitted),
		zap.Int("ignored", w.stats.Ignored),
		zap.Int("dropped_errors", w.stats.DroppedErrors),
		zap.Int("discarded", w.stats.Discarded),
	)
}

// key identifies one logical invocation stream
type key struct {
	stream  string
	request string
}

// pending is an execution that has started but not been emitted
type pending struct {
	rec   domain.ExecutionRecord
	ended bool
}

func (p *pending) open() bool {
	return !p.ended && !p.rec.Status.Terminal()
}

// window holds the correlation state of a single pass
type window struct {
	resource string
	// queues keeps, per key, the executions in the order they started
	queues map[key][]*pending
	// streams keeps, per stream, started executions in start order; the last
	// still-open one is the target of id-less error lines
	streams map[string][]*pending
	// started keeps the executions not yet emitted, in start order
	started []*pending
	stats   Stats
}

func newWindow(resource string) *window {
	return &window{
		resource: resource,
		queues:   make(map[key][]*pending),
		streams:  make(map[string][]*pending),
	}
}

// consume applies one line and returns a record when the line completed one
func (w *window) consume(line domain.LogLine) (domain.ExecutionRecord, bool) {
	w.stats.Lines++

	kind := classify(line.Message)
	if kind == kindOther {
		w.stats.Ignored++
		return domain.ExecutionRecord{}, false
	}

	id := requestID(line, kind)
	k := key{stream: line.StreamID, request: id}

	switch kind {
	case kindStart:
		if id == "" {
			w.stats.Ignored++
			return domain.ExecutionRecord{}, false
		}
		p := &pending{rec: domain.ExecutionRecord{
			ResourceName: w.resource,
			StreamID:     line.StreamID,
			RequestID:    id,
			Status:       domain.ExecutionRunning,
			StartedAt:    line.Timestamp,
		}}
		w.queues[k] = append(w.queues[k], p)
		w.streams[line.StreamID] = append(w.streams[line.StreamID], p)
		w.started = append(w.started, p)

	case kindEnd:
		p := w.oldest(k, (*pending).open)
		if p == nil {
			w.stats.Ignored++
			return domain.ExecutionRecord{}, false
		}
		p.ended = true
		ts := line.Timestamp
		p.rec.CompletedAt = &ts

	case kindReport:
		p := w.oldest(k, func(p *pending) bool { return !p.rec.Status.Terminal() })
		if p == nil {
			w.stats.Ignored++
			return domain.ExecutionRecord{}, false
		}
		p.rec.ReportText = strings.TrimSpace(line.Message)
		if p.rec.CompletedAt == nil {
			ts := line.Timestamp
			p.rec.CompletedAt = &ts
		}
		failed := len(p.rec.Errors) > 0 || reportFailed(line.Message)
		p.rec.Status = terminalStatus(failed)
		w.remove(k, p)
		w.stats.Emitted++
		return p.rec, true

	case kindError:
		var p *pending
		if id != "" {
			p = w.oldest(k, (*pending).open)
			if p == nil {
				p = w.oldest(k, func(p *pending) bool { return !p.rec.Status.Terminal() })
			}
		} else {
			p = w.active(line.StreamID)
		}
		if p == nil {
			w.stats.DroppedErrors++
			return domain.ExecutionRecord{}, false
		}
		p.rec.Errors = append(p.rec.Errors, errorText(line.Message))
	}

	return domain.ExecutionRecord{}, false
}

// flush ends the window: executions that saw END but no REPORT are complete,
// executions that only started are discarded
func (w *window) flush() []domain.ExecutionRecord {
	var out []domain.ExecutionRecord
	for _, p := range w.started {
		if p.rec.Status.Terminal() {
			continue
		}
		if !p.ended {
			w.stats.Discarded++
			continue
		}
		p.rec.Status = terminalStatus(len(p.rec.Errors) > 0)
		out = append(out, p.rec)
		w.stats.Emitted++
	}
	w.queues = nil
	w.streams = nil
	w.started = nil
	return out
}

// oldest returns the first-started execution of k that matches
func (w *window) oldest(k key, match func(*pending) bool) *pending {
	for _, p := range w.queues[k] {
		if match(p) {
			return p
		}
	}
	return nil
}

// active returns the most recently started execution on the stream that is still open
func (w *window) active(stream string) *pending {
	list := w.streams[stream]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].open() {
			return list[i]
		}
	}
	return nil
}

// remove drops an emitted execution from the window
func (w *window) remove(k key, p *pending) {
	w.started = slices.DeleteFunc(w.started, func(q *pending) bool { return q == p })
	w.queues[k] = slices.DeleteFunc(w.queues[k], func(q *pending) bool { return q == p })
	if len(w.queues[k]) == 0 {
		delete(w.queues, k)
	}
	w.streams[k.stream] = slices.DeleteFunc(w.streams[k.stream], func(q *pending) bool { return q == p })
	if len(w.streams[k.stream]) == 0 {
		delete(w.streams, k.stream)
	}
}

func terminalStatus(failed bool) domain.ExecutionStatus {
	if failed {
		return domain.ExecutionFailed
	}
	return domain.ExecutionSucceeded
}

// errorText strips the runtime's tab-separated prefix ("[ERROR]\t<ts>\t<id>\t<msg>")
func errorText(msg string) string {
	fields := strings.Split(strings.TrimSpace(msg), "\t")
	if len(fields) >= 4 && strings.HasPrefix(fields[0], "[ERROR]") {
		return strings.TrimSpace(strings.Join(fields[3:], " "))
	}
	return strings.TrimSpace(msg)
}

// ToMetricRow converts a completed execution to the row written to the metrics store
func ToMetricRow(rec domain.ExecutionRecord) domain.MetricRow {
	report := rec.Report()
	row := domain.MetricRow{
		ResourceName:     rec.ResourceName,
		RunID:            rec.RequestID,
		Time:             rec.StartedAt,
		Execution:        1,
		DurationMs:       report.DurationMs,
		BilledDurationMs: report.BilledDurationMs,
		MaxMemoryUsedMB:  report.MaxMemoryUsedMB,
	}
	row.ExecutionTimeSec = report.DurationMs / 1000
	if row.ExecutionTimeSec == 0 {
		row.ExecutionTimeSec = rec.Duration().Seconds()
	}
	if rec.Status == domain.ExecutionFailed {
		row.Failed = 1
		row.ErrorMessage = strings.Join(rec.Errors, "; ")
		if row.ErrorMessage == "" {
			row.ErrorMessage = "invocation failed: " + rec.ReportText
		}
	} else {
		row.Succeeded = 1
	}
	return row
}

// ToMetricRows converts a window of records, keeping their order
func ToMetricRows(recs []domain.ExecutionRecord) []domain.MetricRow {
	rows := make([]domain.MetricRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, ToMetricRow(rec))
	}
	return rows
}

// sortLines orders lines by timestamp, keeping input order for ties
func sortLines(lines []domain.LogLine) {
	slices.SortStableFunc(lines, func(a, b domain.LogLine) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

// Window returns lines in (since, until] sorted by time; a zero until is open-ended
func Window(lines []domain.LogLine, since, until time.Time) []domain.LogLine {
	out := make([]domain.LogLine, 0, len(lines))
	for _, l := range lines {
		if !l.Timestamp.After(since) {
			continue
		}
		if !until.IsZero() && l.Timestamp.After(until) {
			continue
		}
		out = append(out, l)
	}
	sortLines(out)
	return out
}
