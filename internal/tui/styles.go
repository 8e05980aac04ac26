package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	statusStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskStatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.TaskStatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		models.TaskStatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		models.TaskStatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.TaskStatusSkipped:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// statusIcon returns a one-character marker for a task status.
func statusIcon(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusInProgress:
		return "●"
	case models.TaskStatusCompleted:
		return "✓"
	case models.TaskStatusFailed:
		return "✗"
	case models.TaskStatusSkipped:
		return "↷"
	default:
		return "○"
	}
}

func renderStatus(s models.TaskStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		style = hintStyle
	}
	return style.Render(statusIcon(s) + " " + string(s))
}
