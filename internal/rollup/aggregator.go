package rollup

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vburojevic/runwatch/internal/domain"
)

// MaxErrorLength is the number of characters of an error message kept in a comment
const MaxErrorLength = 100

// LinkFormatter builds a human-followable link for one run of a resource
type LinkFormatter interface {
	RunLink(res domain.Resource, runID string) string
}

// LinkFunc adapts a function to LinkFormatter
type LinkFunc func(res domain.Resource, runID string) string

func (f LinkFunc) RunLink(res domain.Resource, runID string) string { return f(res, runID) }

// Aggregator rolls raw execution rows of a resource up into an AggregatedEntry
type Aggregator struct {
	links LinkFormatter
}

// NewAggregator creates an aggregator. A nil formatter renders comments without links.
func NewAggregator(links LinkFormatter) *Aggregator {
	return &Aggregator{links: links}
}

// Aggregate rolls up rows that are already filtered to the digest window
func (a *Aggregator) Aggregate(res domain.Resource, rows []domain.MetricRow) domain.AggregatedEntry {
	entry := domain.AggregatedEntry{
		MinRequiredRuns: res.MinRequiredRuns,
		SLASeconds:      res.SLASeconds,
	}
	comments := newCommentSet()

	for _, row := range rows {
		entry.Executions += row.Execution
		entry.Success += row.Succeeded
		entry.Errors += row.Failed

		switch {
		case row.Failed > 0:
			comments.add(a.withLink(res, row.RunID,
				fmt.Sprintf("%s failed: %s", runLabel(row), Truncate(row.ErrorMessage, MaxErrorLength))))
		case row.FailedAttempts > 0:
			entry.HadRetrySuccess = true
			comments.add(a.withLink(res, row.RunID,
				fmt.Sprintf("%s succeeded after %d failed attempt(s)", runLabel(row), row.FailedAttempts)))
		}

		if res.SLASeconds > 0 && row.ExecutionTimeSec > res.SLASeconds {
			entry.Warnings++
			entry.SLABreach = true
			comments.add(a.withLink(res, row.RunID,
				fmt.Sprintf("%s exceeded SLA (%ss > %ss)", runLabel(row), seconds(row.ExecutionTimeSec), seconds(res.SLASeconds))))
		}
	}

	if res.MinRequiredRuns > 0 && entry.Executions < res.MinRequiredRuns {
		entry.InsufficientRuns = true
		comments.add(fmt.Sprintf("Not enough runs: %d observed, %d required", entry.Executions, res.MinRequiredRuns))
	}

	entry.Comments = comments.list()
	return entry
}

func (a *Aggregator) withLink(res domain.Resource, runID, comment string) string {
	if a.links == nil {
		return comment
	}
	link := a.links.RunLink(res, runID)
	if link == "" {
		return comment
	}
	return comment + " (" + link + ")"
}

func runLabel(row domain.MetricRow) string {
	if row.RunID == "" {
		return "Run"
	}
	return "Run " + row.RunID
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Truncate shortens s to at most n characters, marking the cut with "..."
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown error"
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// commentSet keeps comments unique by rendered text, in first-seen order
type commentSet struct {
	seen  map[string]bool
	order []string
}

func newCommentSet() *commentSet {
	return &commentSet{seen: make(map[string]bool)}
}

func (c *commentSet) add(s string) {
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	c.order = append(c.order, s)
}

func (c *commentSet) list() []string {
	return c.order
}
