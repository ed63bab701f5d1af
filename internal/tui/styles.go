package tui

import "github.com/charmbracelet/lipgloss"

var (
	appStyle        = lipgloss.NewStyle().Padding(1, 2)
	titleStyle      = lipgloss.NewStyle().Bold(true)
	helpStyle       = lipgloss.NewStyle().Faint(true)
	errorStyle      = lipgloss.NewStyle().Bold(true)
	ownAuthorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	authorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	pendingStyle    = lipgloss.NewStyle().Faint(true)
	overlayBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)
