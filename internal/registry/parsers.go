package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/source"
)

// runOutcome classifies a run state
type runOutcome int

const (
	outcomeRunning runOutcome = iota
	outcomeSucceeded
	outcomeFailed
)

var glueJobStates = map[string]runOutcome{
	"STARTING":  outcomeRunning,
	"RUNNING":   outcomeRunning,
	"STOPPING":  outcomeRunning,
	"WAITING":   outcomeRunning,
	"SUCCEEDED": outcomeSucceeded,
	"FAILED":    outcomeFailed,
	"TIMEOUT":   outcomeFailed,
	"ERROR":     outcomeFailed,
	"STOPPED":   outcomeFailed,
	"EXPIRED":   outcomeFailed,
}

// ParseGlueJobRun parses a Glue JobRun. A successful run with Attempt > 0
// succeeded after that many failed attempts.
func ParseGlueJobRun(_ domain.Resource, doc gjson.Result) (domain.MetricRow, bool) {
	outcome, ok := glueJobStates[strings.ToUpper(doc.Get("JobRunState").String())]
	if !ok || outcome == outcomeRunning {
		return domain.MetricRow{}, false
	}
	started, ok := source.ParseTime(doc.Get("StartedOn"))
	if !ok {
		return domain.MetricRow{}, false
	}

	row := newRow(doc.Get("Id").String(), started)
	row.ExecutionTimeSec = doc.Get("ExecutionTime").Float()
	if row.ExecutionTimeSec == 0 {
		row.ExecutionTimeSec = elapsed(started, doc.Get("CompletedOn"))
	}
	if outcome == outcomeFailed {
		row.Failed = 1
		row.ErrorMessage = nonEmpty(doc.Get("ErrorMessage").String(), "job run "+strings.ToLower(doc.Get("JobRunState").String()))
		return row, true
	}
	row.Succeeded = 1
	row.FailedAttempts = int(doc.Get("Attempt").Int())
	return row, true
}

// ParseGlueWorkflowRun parses a Glue WorkflowRun. A completed run whose actions
// failed or timed out counts as failed.
func ParseGlueWorkflowRun(_ domain.Resource, doc gjson.Result) (domain.MetricRow, bool) {
	status := strings.ToUpper(doc.Get("Status").String())
	if status == "" || status == "RUNNING" || status == "STOPPING" {
		return domain.MetricRow{}, false
	}
	started, ok := source.ParseTime(doc.Get("StartedOn"))
	if !ok {
		return domain.MetricRow{}, false
	}

	row := newRow(doc.Get("WorkflowRunId").String(), started)
	row.ExecutionTimeSec = elapsed(started, doc.Get("CompletedOn"))

	stats := doc.Get("Statistics")
	bad := stats.Get("FailedActions").Int() + stats.Get("TimeoutActions").Int() + stats.Get("ErroredActions").Int()
	switch {
	case status == "ERROR" || status == "STOPPED":
		row.Failed = 1
		row.ErrorMessage = nonEmpty(doc.Get("ErrorMessage").String(), "workflow run "+strings.ToLower(status))
	case bad > 0:
		row.Failed = 1
		row.ErrorMessage = fmt.Sprintf("%d of %d actions failed", bad, stats.Get("TotalActions").Int())
	default:
		row.Succeeded = 1
	}
	return row, true
}

// ParseStepFunctionExecution parses a Step Functions execution. A successful
// redriven execution succeeded after redriveCount failed attempts.
func ParseStepFunctionExecution(_ domain.Resource, doc gjson.Result) (domain.MetricRow, bool) {
	status := strings.ToUpper(doc.Get("status").String())
	switch status {
	case "SUCCEEDED", "FAILED", "TIMED_OUT", "ABORTED":
	default:
		return domain.MetricRow{}, false
	}
	started, ok := source.ParseTime(doc.Get("startDate"))
	if !ok {
		return domain.MetricRow{}, false
	}

	id := doc.Get("name").String()
	if id == "" {
		id = lastSegment(doc.Get("executionArn").String())
	}
	row := newRow(id, started)
	row.ExecutionTimeSec = elapsed(started, doc.Get("stopDate"))

	if status == "SUCCEEDED" {
		row.Succeeded = 1
		row.FailedAttempts = int(doc.Get("redriveCount").Int())
		return row, true
	}
	row.Failed = 1
	parts := make([]string, 0, 2)
	for _, p := range []string{doc.Get("error").String(), doc.Get("cause").String()} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	row.ErrorMessage = nonEmpty(strings.Join(parts, ": "), "execution "+strings.ToLower(status))
	return row, true
}

// ParseQueueSnapshot parses a queue attribute snapshot. Messages in the
// dead-letter queue fail the snapshot; the age of the oldest message is its
// execution time so an SLA bounds queue latency.
func ParseQueueSnapshot(_ domain.Resource, doc gjson.Result) (domain.MetricRow, bool) {
	at, ok := source.ParseTime(doc.Get("Timestamp"))
	if !ok {
		return domain.MetricRow{}, false
	}

	row := newRow(at.Format(time.RFC3339), at)
	row.ExecutionTimeSec = doc.Get("ApproximateAgeOfOldestMessage").Float()
	if dlq := doc.Get("DeadLetterMessages").Int(); dlq > 0 {
		row.Failed = 1
		row.ErrorMessage = fmt.Sprintf("%d message(s) in dead-letter queue, %d visible",
			dlq, doc.Get("ApproximateNumberOfMessagesVisible").Int())
		return row, true
	}
	row.Succeeded = 1
	return row, true
}

// ParseDataQualityResult parses a data quality evaluation. The run fails when
// the evaluation itself failed or any rule did not pass.
func ParseDataQualityResult(_ domain.Resource, doc gjson.Result) (domain.MetricRow, bool) {
	status := strings.ToUpper(doc.Get("Status").String())
	switch status {
	case "STARTING", "RUNNING", "STOPPING":
		return domain.MetricRow{}, false
	}
	started, ok := source.ParseTime(doc.Get("StartedOn"))
	if !ok {
		return domain.MetricRow{}, false
	}

	id := doc.Get("ResultId").String()
	if id == "" {
		id = doc.Get("RunId").String()
	}
	row := newRow(id, started)
	row.ExecutionTimeSec = doc.Get("ExecutionTime").Float()
	if row.ExecutionTimeSec == 0 {
		row.ExecutionTimeSec = elapsed(started, doc.Get("CompletedOn"))
	}

	if status == "FAILED" || status == "TIMEOUT" || status == "STOPPED" {
		row.Failed = 1
		row.ErrorMessage = nonEmpty(doc.Get("ErrorString").String(), "evaluation "+strings.ToLower(status))
		return row, true
	}

	var failing []string
	doc.Get("RuleResults").ForEach(func(_, rule gjson.Result) bool {
		result := strings.ToUpper(rule.Get("Result").String())
		if result == "FAIL" || result == "ERROR" {
			msg := rule.Get("Name").String()
			if m := rule.Get("EvaluationMessage").String(); m != "" {
				msg += ": " + m
			}
			failing = append(failing, msg)
		}
		return true
	})
	if len(failing) > 0 {
		row.Failed = 1
		row.ErrorMessage = fmt.Sprintf("%d rule(s) failed: %s", len(failing), strings.Join(failing, "; "))
		return row, true
	}
	row.Succeeded = 1
	return row, true
}

func newRow(runID string, at time.Time) domain.MetricRow {
	return domain.MetricRow{RunID: runID, Time: at, Execution: 1}
}

func elapsed(started time.Time, completed gjson.Result) float64 {
	end, ok := source.ParseTime(completed)
	if !ok || end.Before(started) {
		return 0
	}
	return end.Sub(started).Seconds()
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func lastSegment(arn string) string {
	if i := strings.LastIndex(arn, ":"); i >= 0 {
		return arn[i+1:]
	}
	return arn
}
