package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/askpdf/askpdf/internal/apiclient"
)

// Run starts the interactive chat program against the given server.
func Run(serverURL string) error {
	client := apiclient.New(serverURL)

	p := tea.NewProgram(New(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
