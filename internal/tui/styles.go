package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorRed    = lipgloss.Color("#ff5555")
	colorWhite  = lipgloss.Color("#f8f8f2")
	colorGray   = lipgloss.Color("#6272a4")
)

// Styles holds all the lipgloss styles for the TUI.
type Styles struct {
	PrimaryPanel  lipgloss.Style
	FollowerPanel lipgloss.Style
	PanelTitle    lipgloss.Style
	Prompt        lipgloss.Style
	Progress      lipgloss.Style
	Feedback      lipgloss.Style
	StatusBar     lipgloss.Style
	Idle          lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		PrimaryPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGreen).
			Padding(1, 2),

		FollowerPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(1, 2),

		PanelTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Prompt: lipgloss.NewStyle().
			Foreground(colorWhite),

		Progress: lipgloss.NewStyle().
			Foreground(colorYellow),

		Feedback: lipgloss.NewStyle().
			Foreground(colorRed).
			Italic(true),

		StatusBar: lipgloss.NewStyle().
			Foreground(colorGray),

		Idle: lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(1, 2),
	}
}
