package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)

	crumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#4A90E2"))

	folderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0066cc")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbbbbb"))

	branchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d7af00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc0000")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#006600"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// percentStyle colours a compliance percentage: red below 50, amber below 80
func percentStyle(p float64) lipgloss.Style {
	switch {
	case p < 50:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#cc0000"))
	case p < 80:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#d78700"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#00af00"))
	}
}
