package domain

import (
	"regexp"
	"strconv"
	"time"
)

// LogLine is a single raw log line from a log-based resource
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	StreamID  string    `json:"stream_id"`
	RequestID string    `json:"request_id,omitempty"`
	Message   string    `json:"message"`
}

// ExecutionStatus represents the lifecycle state of a correlated execution
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Terminal reports whether no further lines may change the execution
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed
}

// ExecutionRecord is one discrete execution reconstructed from log lines
type ExecutionRecord struct {
	ResourceName string          `json:"resource_name"`
	StreamID     string          `json:"stream_id"`
	RequestID    string          `json:"request_id,omitempty"`
	Status       ExecutionStatus `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ReportText   string          `json:"report_text,omitempty"`
	Errors       []string        `json:"errors,omitempty"`
}

// ReportMetrics holds the numeric fields carried by a REPORT line
type ReportMetrics struct {
	DurationMs       float64 `json:"duration_ms"`
	BilledDurationMs float64 `json:"billed_duration_ms"`
	InitDurationMs   float64 `json:"init_duration_ms,omitempty"`
	MemorySizeMB     float64 `json:"memory_size_mb"`
	MaxMemoryUsedMB  float64 `json:"max_memory_used_mb"`
}

// reportFieldRegex matches "<Label>: <number>" pairs. Longer labels come first so
// "Billed Duration" is never read as "Duration".
var reportFieldRegex = regexp.MustCompile(`(Billed Duration|Init Duration|Max Memory Used|Memory Size|Duration):\s*([0-9]+(?:\.[0-9]+)?)?`)

// ParseReport extracts the numeric fields from a REPORT summary. Missing or
// malformed values are zero; it never fails.
func ParseReport(text string) ReportMetrics {
	var m ReportMetrics
	for _, match := range reportFieldRegex.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		switch match[1] {
		case "Duration":
			m.DurationMs = v
		case "Billed Duration":
			m.BilledDurationMs = v
		case "Init Duration":
			m.InitDurationMs = v
		case "Memory Size":
			m.MemorySizeMB = v
		case "Max Memory Used":
			m.MaxMemoryUsedMB = v
		}
	}
	return m
}

// Report returns the parsed report metrics of the execution
func (r *ExecutionRecord) Report() ReportMetrics {
	return ParseReport(r.ReportText)
}

// Duration returns the wall-clock duration, zero when the execution never completed
func (r *ExecutionRecord) Duration() time.Duration {
	if r.CompletedAt == nil || r.CompletedAt.Before(r.StartedAt) {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
