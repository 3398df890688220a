package domain

import "time"

// MetricRow is one normalized execution row as stored in the metrics store
type MetricRow struct {
	ResourceName     string    `json:"resource_name"`
	RunID            string    `json:"run_id"`
	Time             time.Time `json:"time"`
	Execution        int       `json:"execution"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	FailedAttempts   int       `json:"failed_attempts"`
	ExecutionTimeSec float64   `json:"execution_time_sec"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	DurationMs       float64   `json:"duration_ms,omitempty"`
	BilledDurationMs float64   `json:"billed_duration_ms,omitempty"`
	MaxMemoryUsedMB  float64   `json:"max_memory_used_mb,omitempty"`
}

// Query describes a read of already-written rows for one resource type
type Query struct {
	Type      ResourceType `json:"type"`
	Table     string       `json:"table"`
	Resources []string     `json:"resources,omitempty"`
	Since     time.Time    `json:"since"`
	Until     time.Time    `json:"until"`
	// OnlyFailures restricts the read to rows that carry a failure
	OnlyFailures bool `json:"only_failures,omitempty"`
}
