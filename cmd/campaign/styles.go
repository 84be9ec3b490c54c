package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/jgueth/campaign-automation/internal/report"
)

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func tag(style lipgloss.Style, label string) string {
	return style.Render("[" + label + "]")
}

func statusTag(s report.StageStatus) string {
	switch s {
	case report.StageOK:
		return tag(okStyle, "OK")
	case report.StageFailed:
		return tag(errStyle, "FAILED")
	case report.StageWarning:
		return tag(warnStyle, "WARNING")
	default:
		return tag(mutedStyle, "SKIPPED")
	}
}

func runStatusTag(s report.Status) string {
	switch s {
	case report.StatusPassed:
		return tag(okStyle, "PASSED")
	case report.StatusPassedWithWarnings:
		return tag(warnStyle, "PASSED WITH WARNINGS")
	default:
		return tag(errStyle, "FAILED")
	}
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
