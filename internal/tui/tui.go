package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/cssmerge/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Runner is the work the TUI waits on.
type Runner interface {
	Execute() (model.Summary, error)
}

// StackError is implemented by errors that carry a stack trace.
type StackError interface {
	error
	StackTrace() []byte
}

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct {
	summary model.Summary
	err     error
}

func (e errorMsg) Error() string { return e.err.Error() }

// ProgressMsg reports how many of total merges are done.
type ProgressMsg struct {
	Current, Total int
}

// --- Model ---
type Model struct {
	runner   Runner
	spinner  spinner.Model
	state    state
	progress ProgressMsg
	summary  model.Summary
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(runner Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		runner:  runner,
		spinner: s,
		state:   stateProcessing,
	}
}

// Err returns the error the run ended with, if any.
func (m Model) Err() error {
	return m.err
}

// Summary returns the summary of a finished run.
func (m Model) Summary() model.Summary {
	return m.summary
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case ProgressMsg:
		m.progress = msg
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg.Summary
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.progress.Total > 1 {
			return fmt.Sprintf("%s Merging... %d/%d", m.spinner.View(), m.progress.Current, m.progress.Total)
		}
		return fmt.Sprintf("%s Merging...", m.spinner.View())
	case stateError:
		return m.renderSummary() + errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	if len(m.summary.Jobs) > 0 {
		for _, job := range m.summary.Jobs {
			renderMerge(&b, job)
		}
		return b.String()
	}
	if m.summary.Baseline != "" {
		renderMerge(&b, m.summary)
		return b.String()
	}

	// Undo and redo only list files.
	renderFiles(&b, successStyle.Render("Restored:"), m.summary.Written)
	renderFiles(&b, errorStyle.Render("Failed:"), m.summary.Failed)
	if len(m.summary.Written) == 0 && len(m.summary.Failed) == 0 && m.summary.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	return b.String()
}

func renderMerge(b *strings.Builder, s model.Summary) {
	if s.Baseline == "" {
		// The job failed before anything was read.
		renderFiles(b, errorStyle.Render("Failed:"), s.Failed)
		return
	}

	b.WriteString(headerStyle.Render(s.Output))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("  %d selectors indexed from %s, %d blocks scanned from %s",
		s.Indexed, s.Baseline, s.Candidates, s.Candidate)))
	b.WriteString("\n")
	b.WriteString(successStyle.Render(fmt.Sprintf("  %d new block(s)", s.Novel)))
	b.WriteString("\n")
	for _, k := range s.NovelKeys {
		b.WriteString(fmt.Sprintf("    + %s\n", pathStyle.Render(k)))
	}
	renderFiles(b, successStyle.Render("  Written:"), s.Written)
	renderFiles(b, errorStyle.Render("  Failed:"), s.Failed)
}

func renderFiles(b *strings.Builder, title string, files []string) {
	if len(files) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	for _, f := range files {
		b.WriteString(fmt.Sprintf("    %s\n", pathStyle.Render(f)))
	}
}

func (m Model) run() tea.Msg {
	summary, err := m.runner.Execute()
	if err != nil {
		var st StackError
		if errors.As(err, &st) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", st.StackTrace())
		}
		return errorMsg{summary: summary, err: err}
	}
	return summaryMsg{Summary: summary}
}
