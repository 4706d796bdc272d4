package tui

import "github.com/charmbracelet/lipgloss"

var (
	primary = lipgloss.Color("#1a237e")
	accent  = lipgloss.Color("#0066cc")
	muted   = lipgloss.Color("#9e9e9e")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primary).
			Padding(0, 2)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginTop(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle     = lipgloss.NewStyle().Bold(true)

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(muted).
			Padding(0, 1).
			MarginRight(2)

	focusedFormStyle = formStyle.BorderForeground(primary)

	buttonStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(primary).Padding(0, 1)
	disabledButtonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(muted).Padding(0, 1)

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2e7d32"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#c62828"))
	statusStyle  = lipgloss.NewStyle().Italic(true).Foreground(accent)
	helpStyle    = lipgloss.NewStyle().Foreground(muted)
	focusMarker  = lipgloss.NewStyle().Foreground(accent).Render("›")
)
