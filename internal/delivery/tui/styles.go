package tui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	verseNumStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("147"))

	selectedNumStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	translationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Italic(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("179"))

	readMark = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("✓")
)
