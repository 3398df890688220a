package rollup

import (
	"sort"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Result pairs a resource with its rollup for one window
type Result struct {
	Resource domain.Resource        `json:"resource"`
	Entry    domain.AggregatedEntry `json:"entry"`
	Status   domain.Status          `json:"status"`
}

// NewResult builds a Result with its status filled in
func NewResult(res domain.Resource, entry domain.AggregatedEntry) Result {
	return Result{Resource: res, Entry: entry, Status: entry.Status()}
}

// Summarize reduces resource entries into one summary. The reduction is a plain
// field-wise sum, so any split of the entries summarizes to the same totals.
func Summarize(entries []domain.AggregatedEntry) domain.SummaryEntry {
	var s domain.SummaryEntry
	for _, e := range entries {
		s = s.Add(domain.SummaryEntry{
			Executions: e.Executions,
			Success:    e.Success,
			Failures:   e.Failures(),
			Warnings:   e.Warnings,
		})
	}
	return s
}

// GroupSummaries reduces results per monitoring group and resource type
func GroupSummaries(results []Result) map[string]map[domain.ResourceType]domain.SummaryEntry {
	entries := make(map[string]map[domain.ResourceType][]domain.AggregatedEntry)
	for _, r := range results {
		byType, ok := entries[r.Resource.Group]
		if !ok {
			byType = make(map[domain.ResourceType][]domain.AggregatedEntry)
			entries[r.Resource.Group] = byType
		}
		byType[r.Resource.Type] = append(byType[r.Resource.Type], r.Entry)
	}

	out := make(map[string]map[domain.ResourceType]domain.SummaryEntry, len(entries))
	for group, byType := range entries {
		out[group] = make(map[domain.ResourceType]domain.SummaryEntry, len(byType))
		for rt, list := range byType {
			out[group][rt] = Summarize(list)
		}
	}
	return out
}

// GroupStatus returns the most severe status across a group's summaries
func GroupStatus(byType map[domain.ResourceType]domain.SummaryEntry) domain.Status {
	status := domain.StatusOK
	for _, s := range byType {
		if st := s.Status(); st.Priority() > status.Priority() {
			status = st
		}
	}
	return status
}

// SortResults orders results by severity, then group, type and name
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Status.Priority() != b.Status.Priority() {
			return a.Status.Priority() > b.Status.Priority()
		}
		if a.Resource.Group != b.Resource.Group {
			return a.Resource.Group < b.Resource.Group
		}
		if a.Resource.Type != b.Resource.Type {
			return a.Resource.Type < b.Resource.Type
		}
		return a.Resource.Name < b.Resource.Name
	})
}
