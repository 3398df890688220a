package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/vburojevic/runwatch/internal/domain"
	"github.com/vburojevic/runwatch/internal/monitor"
)

// TextWriter writes results as tables for humans
type TextWriter struct {
	w     io.Writer
	color bool
}

// NewTextWriter creates a new text writer; styling is on only for terminals
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w, color: ColorEnabled(w)}
}

func (w *TextWriter) render(style lipgloss.Style, s string) string {
	if !w.color {
		return s
	}
	return style.Render(s)
}

func (w *TextWriter) status(s domain.Status) string {
	return w.render(StatusStyle(s), StatusLabel(s))
}

func (w *TextWriter) header(title string) error {
	_, err := io.WriteString(w.w, "\n"+w.render(Styles.Header, title)+"\n")
	return err
}

// WriteExtract outputs a table of resource results and a summary line
func (w *TextWriter) WriteExtract(report monitor.ExtractReport) error {
	if err := w.header("Extraction until " + formatTime(report.Until)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w.w)
	table.Header("Type", "Resource", "Since", "Extracted", "Written", "Status", "Note")
	failed, alerting := 0, 0
	for _, r := range report.Results {
		status, note := "-", ""
		switch {
		case r.Err != nil:
			failed++
			status = w.render(Styles.Error, "FAILED")
			note = r.Err.Error()
		case r.Alert != nil:
			status = w.status(r.Alert.Status())
			if len(r.Alert.Comments) > 0 {
				note = r.Alert.Comments[0]
			}
		}
		if r.Alerting() {
			alerting++
		}
		if err := table.Append([]string{
			string(r.Resource.Type),
			r.Resource.Name,
			formatTime(r.Since),
			strconv.Itoa(r.Extracted),
			strconv.Itoa(r.Written),
			status,
			note,
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	line := w.render(Styles.Label, "Resources: ") + w.render(Styles.Value, strconv.Itoa(len(report.Results)))
	line += " | " + w.counter("Failed", failed, Styles.Error)
	line += " | " + w.counter("Alerting", alerting, Styles.Warning)
	if report.Partial {
		line += " | " + w.render(Styles.Warning, "PARTIAL")
	}
	_, err := io.WriteString(w.w, line+"\n")
	return err
}

// WriteDigest outputs the resource table, comments, group summaries and failures
func (w *TextWriter) WriteDigest(report monitor.DigestReport) error {
	title := fmt.Sprintf("Digest %s to %s: %s", formatTime(report.Since), formatTime(report.Until), StatusLabel(report.Status()))
	if err := w.header(title); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w.w)
	table.Header("Group", "Type", "Resource", "Status", "Executions", "Success", "Errors", "Warnings")
	for _, r := range report.Results {
		if err := table.Append([]string{
			r.Resource.Group,
			string(r.Resource.Type),
			r.Resource.Name,
			w.status(r.Status),
			strconv.Itoa(r.Entry.Executions),
			strconv.Itoa(r.Entry.Success),
			strconv.Itoa(r.Entry.Errors),
			strconv.Itoa(r.Entry.Warnings),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	var comments strings.Builder
	for _, r := range report.Results {
		for _, c := range r.Entry.Comments {
			fmt.Fprintf(&comments, "  %s %s\n", w.render(Styles.Muted, r.Resource.Key()+":"), c)
		}
	}
	if comments.Len() > 0 {
		if err := w.header("Comments"); err != nil {
			return err
		}
		if _, err := io.WriteString(w.w, comments.String()); err != nil {
			return err
		}
	}

	if err := w.header("Groups"); err != nil {
		return err
	}
	groups := tablewriter.NewWriter(w.w)
	groups.Header("Group", "Type", "Status", "Executions", "Success", "Failures", "Warnings")
	for _, s := range sortedSummaries(report.Summaries) {
		if err := groups.Append([]string{
			s.group,
			string(s.rt),
			w.status(s.entry.Status()),
			strconv.Itoa(s.entry.Executions),
			strconv.Itoa(s.entry.Success),
			strconv.Itoa(s.entry.Failures),
			strconv.Itoa(s.entry.Warnings),
		}); err != nil {
			return err
		}
	}
	if err := groups.Render(); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		if err := w.header("Failures"); err != nil {
			return err
		}
		for _, f := range report.Failures {
			line := fmt.Sprintf("  %s %s/%s: %s\n", w.render(Styles.Error, "!"), f.Type, f.Resource, f.Message)
			if _, err := io.WriteString(w.w, line); err != nil {
				return err
			}
		}
	}
	if report.Partial {
		_, err := io.WriteString(w.w, w.render(Styles.Warning, "Digest is partial: the deadline passed before every type was read")+"\n")
		return err
	}
	return nil
}

// WriteResources outputs a table of configured resources
func (w *TextWriter) WriteResources(resources []domain.Resource, links func(domain.Resource) string) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("Group", "Type", "Name", "Min Runs", "SLA (s)", "Link")
	for _, r := range resources {
		sla := "-"
		if r.SLASeconds > 0 {
			sla = strconv.FormatFloat(r.SLASeconds, 'f', -1, 64)
		}
		link := ""
		if links != nil {
			link = w.render(Styles.Link, links(r))
		}
		if err := table.Append([]string{
			r.Group,
			string(r.Type),
			r.Name,
			strconv.Itoa(r.MinRequiredRuns),
			sla,
			link,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// WriteError outputs a styled error
func (w *TextWriter) WriteError(code, message string) error {
	line := w.render(Styles.Error, "Error") + " " + w.render(Styles.Warning, "["+code+"]") + ": " + message + "\n"
	_, err := io.WriteString(w.w, line)
	return err
}

func (w *TextWriter) counter(label string, n int, style lipgloss.Style) string {
	if n > 0 {
		return w.render(style, label+": "+strconv.Itoa(n))
	}
	return w.render(Styles.Label, label+": ") + w.render(Styles.Value, "0")
}
