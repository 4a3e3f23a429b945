// Package tui is the interactive terminal client for a running askpdf
// server. Free text asks a question; colon commands manage documents.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/askpdf/askpdf/internal/apiclient"
	"github.com/askpdf/askpdf/internal/service"
)

const helpLine = "enter: ask   :upload <path>   :list   :clear   ctrl+e: context   ctrl+c: quit"

type queryDoneMsg struct {
	result *service.QueryResult
	err    error
}

type uploadDoneMsg struct {
	filename string
	result   *service.UploadResult
	err      error
}

type listDoneMsg struct {
	result *apiclient.ViewAllResult
	err    error
}

type clearDoneMsg struct {
	message string
	err     error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client *apiclient.Client
	styles *Styles

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	lastResult  *service.QueryResult
	body        string
	status      string
	busy        bool
	showContext bool
	ready       bool
}

// New creates a chat model talking to the given server.
func New(client *apiclient.Client) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or :upload <file.pdf>"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		client:   client,
		styles:   styles,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		body:     "No documents queried yet.",
		status:   "Connected. Type to ask.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := m.styles.Border.GetFrameSize()
		reserved := 4 + bh // title, input box, status, help
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "ctrl+e":
			m.showContext = !m.showContext
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case "enter":
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			return m.dispatch(line)
		case "up", "down", "pgup", "pgdown":
			// The viewport's own keymap handles scrolling.
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case queryDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.lastResult = msg.result
		m.body = ""
		m.status = fmt.Sprintf("Answered (%d chunks retrieved).", len(msg.result.Scores))
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoTop()
		return m, nil

	case uploadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Upload error: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%s: %s (%d chunks).", msg.filename, msg.result.Message, msg.result.ChunksStored)
		return m, nil

	case listDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "List error: " + msg.err.Error()
			return m, nil
		}
		m.lastResult = nil
		m.body = renderListing(msg.result)
		m.status = fmt.Sprintf("%d chunks stored.", len(msg.result.IDs))
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoTop()
		return m, nil

	case clearDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Clear error: " + msg.err.Error()
			return m, nil
		}
		m.lastResult = nil
		m.body = "Store is empty."
		m.status = msg.message
		m.viewport.SetContent(m.renderBody())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch routes an input line to the matching server call.
func (m Model) dispatch(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == ":quit" || line == ":q":
		return m, tea.Quit

	case line == ":list":
		m.busy = true
		m.status = "Fetching stored chunks..."
		return m, tea.Batch(m.spinner.Tick, m.listCmd())

	case line == ":clear":
		m.busy = true
		m.status = "Deleting all documents..."
		return m, tea.Batch(m.spinner.Tick, m.clearCmd())

	case strings.HasPrefix(line, ":upload "):
		path := strings.TrimSpace(strings.TrimPrefix(line, ":upload"))
		if path == "" {
			m.status = "Usage: :upload <path-to-pdf>"
			return m, nil
		}
		m.busy = true
		m.status = "Uploading " + path + "..."
		return m, tea.Batch(m.spinner.Tick, m.uploadCmd(path))

	case strings.HasPrefix(line, ":"):
		m.status = "Unknown command: " + line
		return m, nil

	default:
		m.busy = true
		m.status = "Thinking..."
		return m, tea.Batch(m.spinner.Tick, m.queryCmd(line))
	}
}

func (m Model) queryCmd(query string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		res, err := client.Query(context.Background(), query)
		return queryDoneMsg{result: res, err: err}
	}
}

func (m Model) uploadCmd(path string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{filename: path, err: err}
		}
		defer f.Close()

		name := filepath.Base(path)
		res, err := client.Upload(context.Background(), name, f)
		return uploadDoneMsg{filename: name, result: res, err: err}
	}
}

func (m Model) listCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		res, err := client.ViewAll(context.Background())
		return listDoneMsg{result: res, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		msg, err := client.DeleteAll(context.Background())
		return clearDoneMsg{message: msg, err: err}
	}
}

// View renders the layout: title, result viewport, input, status, help.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := m.styles.Title.Render("askpdf") + "  " + m.styles.Subtitle.Render("chat with your documents")
	body := m.styles.Border.Render(m.viewport.View())
	input := m.styles.ActiveBorder.Render(m.input.View())

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + m.styles.StatusBusy.Render(status)
	} else if strings.HasPrefix(status, "Error") || strings.Contains(status, "error") {
		status = m.styles.StatusErr.Render(status)
	} else {
		status = m.styles.StatusOK.Render(status)
	}

	return title + "\n" + body + "\n" + input + "\n" + status + "\n" + m.styles.Help.Render(helpLine)
}

func (m Model) renderBody() string {
	if m.lastResult == nil {
		return m.body
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Q: " + m.lastResult.Query))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Answer.Render(m.lastResult.Answer))

	if m.showContext {
		b.WriteString("\n\n")
		b.WriteString(m.styles.Subtitle.Render("Retrieved context"))
		for i, score := range m.lastResult.Scores {
			b.WriteString("\n")
			b.WriteString(ScoreColor(float64(score)).Render(fmt.Sprintf("[%d] score=%.3f", i+1, score)))
		}
		b.WriteString("\n")
		b.WriteString(m.styles.Context.Render(m.lastResult.RetrievedContext))
	}
	return b.String()
}

func renderListing(res *apiclient.ViewAllResult) string {
	if len(res.IDs) == 0 {
		if res.Message != "" {
			return res.Message
		}
		return "Store is empty."
	}

	var b strings.Builder
	for i, id := range res.IDs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		meta := res.Metadatas[i]
		b.WriteString(fmt.Sprintf("%s  (source=%s index=%d category=%s)\n", id, meta.Source, meta.ChunkIndex, meta.Category))
		b.WriteString(truncate(res.Documents[i], 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
