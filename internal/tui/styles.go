package tui

import "github.com/charmbracelet/lipgloss"

// Color constants matching the dark dashboard theme
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// Styles holds all lipgloss styles for the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	StatusOK   lipgloss.Style
	StatusErr  lipgloss.Style
	StatusBusy lipgloss.Style

	Answer  lipgloss.Style
	Context lipgloss.Style

	Border       lipgloss.Style
	ActiveBorder lipgloss.Style

	Spinner lipgloss.Style
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorBright)),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		StatusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGreen)),

		StatusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorRed)),

		StatusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorYellow)),

		Answer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),

		Context: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(0, 1),

		ActiveBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBlue)).
			Padding(0, 1),

		Spinner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)),
	}
}

// ScoreColor returns a style based on the similarity score.
// Green for >=0.8, yellow for >=0.5, red for <0.5
func ScoreColor(score float64) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)

	if score >= 0.8 {
		return style.Foreground(lipgloss.Color(ColorGreen))
	} else if score >= 0.5 {
		return style.Foreground(lipgloss.Color(ColorYellow))
	}
	return style.Foreground(lipgloss.Color(ColorRed))
}
