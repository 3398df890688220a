package domain

// Status is the rolled-up health of a resource or group
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Priority returns the severity of a status (higher = more severe)
func (s Status) Priority() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// statusOf applies the error > warning > ok precedence
func statusOf(errored bool, warnings int) Status {
	if errored {
		return StatusError
	}
	if warnings > 0 {
		return StatusWarning
	}
	return StatusOK
}

// AggregatedEntry is the per-resource rollup of one digest window
type AggregatedEntry struct {
	Executions       int      `json:"executions"`
	Success          int      `json:"success"`
	Errors           int      `json:"errors"`
	Warnings         int      `json:"warnings"`
	Comments         []string `json:"comments,omitempty"`
	MinRequiredRuns  int      `json:"min_required_runs,omitempty"`
	SLASeconds       float64  `json:"sla_seconds,omitempty"`
	InsufficientRuns bool     `json:"insufficient_runs,omitempty"`
	SLABreach        bool     `json:"sla_breach,omitempty"`
	HadRetrySuccess  bool     `json:"had_retry_success,omitempty"`
}

// Status derives the entry status from its counters
func (e AggregatedEntry) Status() Status {
	return statusOf(e.Errors > 0 || e.InsufficientRuns, e.Warnings)
}

// Failures counts errors plus one for a missing-runs condition
func (e AggregatedEntry) Failures() int {
	if e.InsufficientRuns {
		return e.Errors + 1
	}
	return e.Errors
}

// SummaryEntry is the per (group, resource type) rollup
type SummaryEntry struct {
	Executions int `json:"executions"`
	Success    int `json:"success"`
	Failures   int `json:"failures"`
	Warnings   int `json:"warnings"`
}

// Status derives the summary status with the same precedence as AggregatedEntry
func (s SummaryEntry) Status() Status {
	return statusOf(s.Failures > 0, s.Warnings)
}

// Add returns the field-wise sum of two summaries
func (s SummaryEntry) Add(o SummaryEntry) SummaryEntry {
	return SummaryEntry{
		Executions: s.Executions + o.Executions,
		Success:    s.Success + o.Success,
		Failures:   s.Failures + o.Failures,
		Warnings:   s.Warnings + o.Warnings,
	}
}
