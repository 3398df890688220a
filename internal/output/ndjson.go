package output

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/monitor"
)

// NDJSONWriter writes results as NDJSON, one typed record per line
type NDJSONWriter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // keep deep links readable
	return &NDJSONWriter{
		w:       w,
		encoder: enc,
	}
}

// ExtractOutput is one resource's extraction result
type ExtractOutput struct {
	Type          string                  `json:"type"` // Always "extract_result"
	SchemaVersion int                     `json:"schemaVersion"`
	ResourceType  domain.ResourceType     `json:"resource_type"`
	Resource      string                  `json:"resource"`
	Group         string                  `json:"group,omitempty"`
	Since         string                  `json:"since,omitempty"`
	Extracted     int                     `json:"extracted"`
	Written       int                     `json:"written"`
	Dropped       int                     `json:"dropped,omitempty"`
	Status        domain.Status           `json:"status,omitempty"`
	Alert         *domain.AggregatedEntry `json:"alert,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// ExtractSummaryOutput closes an extraction cycle
type ExtractSummaryOutput struct {
	Type          string `json:"type"` // Always "extract_summary"
	SchemaVersion int    `json:"schemaVersion"`
	Until         string `json:"until"`
	Resources     int    `json:"resources"`
	Failed        int    `json:"failed"`
	Alerting      int    `json:"alerting"`
	Written       int    `json:"written"`
	Partial       bool   `json:"partial,omitempty"`
}

// DigestEntryOutput is one resource's rollup in a digest
type DigestEntryOutput struct {
	Type          string              `json:"type"` // Always "digest_entry"
	SchemaVersion int                 `json:"schemaVersion"`
	ResourceType  domain.ResourceType `json:"resource_type"`
	Resource      string              `json:"resource"`
	Group         string              `json:"group"`
	Status        domain.Status       `json:"status"`
	domain.AggregatedEntry
}

// GroupSummaryOutput is the rollup of one (group, resource type)
type GroupSummaryOutput struct {
	Type          string              `json:"type"` // Always "group_summary"
	SchemaVersion int                 `json:"schemaVersion"`
	Group         string              `json:"group"`
	ResourceType  domain.ResourceType `json:"resource_type"`
	Status        domain.Status       `json:"status"`
	domain.SummaryEntry
}

// FailureOutput reports a resource that could not be processed
type FailureOutput struct {
	Type          string              `json:"type"` // Always "failure"
	SchemaVersion int                 `json:"schemaVersion"`
	ResourceType  domain.ResourceType `json:"resource_type"`
	Resource      string              `json:"resource,omitempty"`
	Group         string              `json:"group,omitempty"`
	Message       string              `json:"message"`
}

// DigestOutput closes a digest
type DigestOutput struct {
	Type          string        `json:"type"` // Always "digest"
	SchemaVersion int           `json:"schemaVersion"`
	Since         string        `json:"since"`
	Until         string        `json:"until"`
	Status        domain.Status `json:"status"`
	Resources     int           `json:"resources"`
	Failures      int           `json:"failures"`
	Partial       bool          `json:"partial,omitempty"`
}

// ResourceOutput describes one configured resource
type ResourceOutput struct {
	Type            string              `json:"type"` // Always "resource"
	SchemaVersion   int                 `json:"schemaVersion"`
	ResourceType    domain.ResourceType `json:"resource_type"`
	Resource        string              `json:"resource"`
	Group           string              `json:"group"`
	Region          string              `json:"region,omitempty"`
	AccountID       string              `json:"account_id,omitempty"`
	MinRequiredRuns int                 `json:"min_required_runs,omitempty"`
	SLASeconds      float64             `json:"sla_seconds,omitempty"`
	Link            string              `json:"link,omitempty"`
}

// ErrorOutput represents an error
type ErrorOutput struct {
	Type          string `json:"type"` // Always "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WriteExtract outputs one record per resource followed by a summary
func (w *NDJSONWriter) WriteExtract(report monitor.ExtractReport) error {
	summary := ExtractSummaryOutput{
		Type:          "extract_summary",
		SchemaVersion: SchemaVersion,
		Until:         formatTime(report.Until),
		Resources:     len(report.Results),
		Partial:       report.Partial,
	}
	for _, r := range report.Results {
		out := ExtractOutput{
			Type:          "extract_result",
			SchemaVersion: SchemaVersion,
			ResourceType:  r.Resource.Type,
			Resource:      r.Resource.Name,
			Group:         r.Resource.Group,
			Since:         formatTime(r.Since),
			Extracted:     r.Extracted,
			Written:       r.Written,
			Dropped:       r.Dropped,
			Alert:         r.Alert,
		}
		if r.Alert != nil {
			out.Status = r.Alert.Status()
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
			summary.Failed++
		}
		if r.Alerting() {
			summary.Alerting++
		}
		summary.Written += r.Written
		if err := w.encoder.Encode(&out); err != nil {
			return err
		}
	}
	return w.encoder.Encode(&summary)
}

// WriteDigest outputs resource entries, group summaries and failures, then a closing record
func (w *NDJSONWriter) WriteDigest(report monitor.DigestReport) error {
	for _, r := range report.Results {
		if err := w.encoder.Encode(&DigestEntryOutput{
			Type:            "digest_entry",
			SchemaVersion:   SchemaVersion,
			ResourceType:    r.Resource.Type,
			Resource:        r.Resource.Name,
			Group:           r.Resource.Group,
			Status:          r.Status,
			AggregatedEntry: r.Entry,
		}); err != nil {
			return err
		}
	}
	for _, s := range sortedSummaries(report.Summaries) {
		if err := w.encoder.Encode(&GroupSummaryOutput{
			Type:          "group_summary",
			SchemaVersion: SchemaVersion,
			Group:         s.group,
			ResourceType:  s.rt,
			Status:        s.entry.Status(),
			SummaryEntry:  s.entry,
		}); err != nil {
			return err
		}
	}
	for _, f := range report.Failures {
		if err := w.encoder.Encode(&FailureOutput{
			Type:          "failure",
			SchemaVersion: SchemaVersion,
			ResourceType:  f.Type,
			Resource:      f.Resource,
			Group:         f.Group,
			Message:       f.Message,
		}); err != nil {
			return err
		}
	}
	return w.encoder.Encode(&DigestOutput{
		Type:          "digest",
		SchemaVersion: SchemaVersion,
		Since:         formatTime(report.Since),
		Until:         formatTime(report.Until),
		Status:        report.Status(),
		Resources:     len(report.Results),
		Failures:      len(report.Failures),
		Partial:       report.Partial,
	})
}

// WriteResources outputs one record per resource
func (w *NDJSONWriter) WriteResources(resources []domain.Resource, links func(domain.Resource) string) error {
	for _, r := range resources {
		out := ResourceOutput{
			Type:            "resource",
			SchemaVersion:   SchemaVersion,
			ResourceType:    r.Type,
			Resource:        r.Name,
			Group:           r.Group,
			Region:          r.Region,
			AccountID:       r.AccountID,
			MinRequiredRuns: r.MinRequiredRuns,
			SLASeconds:      r.SLASeconds,
		}
		if links != nil {
			out.Link = links(r)
		}
		if err := w.encoder.Encode(&out); err != nil {
			return err
		}
	}
	return nil
}

// WriteError outputs an error
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.encoder.Encode(out)
}

// WriteRaw outputs raw JSON data
func (w *NDJSONWriter) WriteRaw(v interface{}) error {
	return w.encoder.Encode(v)
}

type groupSummary struct {
	group string
	rt    domain.ResourceType
	entry domain.SummaryEntry
}

// sortedSummaries flattens group summaries in group, then type order
func sortedSummaries(summaries map[string]map[domain.ResourceType]domain.SummaryEntry) []groupSummary {
	var out []groupSummary
	for group, byType := range summaries {
		for rt, entry := range byType {
			out = append(out, groupSummary{group: group, rt: rt, entry: entry})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].group != out[j].group {
			return out[i].group < out[j].group
		}
		return out[i].rt < out[j].rt
	})
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
