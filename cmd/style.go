package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6"))
)

func header(text string) string {
	return headerStyle.Render(text)
}

func success(text string) string {
	return successStyle.Render(text)
}

func warning(text string) string {
	return warningStyle.Render(text)
}

func errorText(text string) string {
	return errorStyle.Render(text)
}

func muted(text string) string {
	return mutedStyle.Render(text)
}

func highlight(text string) string {
	return keyStyle.Render(text)
}
