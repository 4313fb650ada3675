package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/roasbeef/clinbox/internal/analysis"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("63")).
			Padding(0, 1)

	positionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	fieldKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("130")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("63")).
				MarginBottom(1)
)

// priorityStyle colors a priority badge.
func priorityStyle(p analysis.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch p {
	case analysis.PriorityUrgent:
		return base.Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("160"))

	case analysis.PriorityActionable:
		return base.Foreground(lipgloss.Color("232")).
			Background(lipgloss.Color("220"))

	default:
		return base.Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25"))
	}
}
