package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Styles holds all lipgloss styles for text output
var Styles = struct {
	// Status styles
	OK      lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Component styles
	Header lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
	Link   lipgloss.Style
}{
	OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),  // Green
	Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true), // Orange
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // Red

	Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(lipgloss.Color("239")),
	Label:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	Value:  lipgloss.NewStyle().Bold(true),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
	Link:   lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Underline(true),
}

// StatusStyle returns the style of a status
func StatusStyle(s domain.Status) lipgloss.Style {
	switch s {
	case domain.StatusError:
		return Styles.Error
	case domain.StatusWarning:
		return Styles.Warning
	default:
		return Styles.OK
	}
}

// StatusLabel returns the upper-case label of a status
func StatusLabel(s domain.Status) string {
	switch s {
	case domain.StatusError:
		return "ERROR"
	case domain.StatusWarning:
		return "WARNING"
	case domain.StatusOK:
		return "OK"
	default:
		return "-"
	}
}

// ColorEnabled reports whether w is a terminal that should get styled output
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
