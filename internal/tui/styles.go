package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/majordomo/pkg/models"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	fromStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	notifyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	permissionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	statusStyles = map[models.AgentStatus]lipgloss.Style{
		models.AgentSpawning:      lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		models.AgentActive:        lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.AgentIdle:          lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		models.AgentAwaitingInput: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.AgentDone:          lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

// agentStyle returns the style for an agent status badge.
func agentStyle(status models.AgentStatus) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return dimStyle
}
