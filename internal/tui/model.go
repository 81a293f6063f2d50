// Package tui hosts an evaluation session in the terminal.
package tui

import (
	"io"
	"os"
	"strconv"

	"evaluation-service/internal/engine"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures the terminal model.
type Options struct {
	Title   string
	NoColor bool
}

// Model renders one evaluation session and maps keys to session operations.
type Model struct {
	session  *engine.Session
	updates  <-chan engine.Snapshot
	cancel   func()
	title    string
	noColor  bool
	snap     engine.Snapshot
	question *engine.QuestionView
	confirm  *engine.Submission
	review   []engine.ReviewItem
	err      error
}

// NewModel subscribes to session. The session stays owned by the caller.
func NewModel(session *engine.Session, opts Options) Model {
	updates, cancel := session.Subscribe()
	m := Model{
		session: session,
		updates: updates,
		cancel:  cancel,
		title:   opts.Title,
		noColor: opts.NoColor,
	}
	return m.refresh()
}

// Init waits for the first snapshot.
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

// Update consumes snapshots and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case snapshotMsg:
		m.snap = engine.Snapshot(typed)
		m = m.refreshQuestion()
		return m, waitForSnapshot(m.updates)
	case closedMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		return m.handleKey(typed.String())
	}
	return m, nil
}

// View renders the session.
func (m Model) View() string {
	return render(m)
}

// Snapshot returns the last state the model rendered.
func (m Model) Snapshot() engine.Snapshot {
	return m.snap
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	if key == "ctrl+c" || key == "q" {
		m.cancel()
		m.session.Close()
		return m, tea.Quit
	}

	m.err = nil
	if m.confirm != nil {
		switch key {
		case "y":
			_, m.err = m.session.ConfirmSubmit()
		case "esc", "n":
		default:
			return m, nil
		}
		m.confirm = nil
		return m.refresh(), nil
	}

	switch key {
	case "right", "l":
		m.err = m.session.Next()
	case "left", "h":
		m.err = m.session.Previous()
	case "s":
		sub, err := m.session.RequestSubmit()
		m.err = err
		if err == nil && sub.NeedsConfirmation {
			m.confirm = &sub
		}
	case "r":
		if m.err = m.session.EnterReview(); m.err == nil {
			m.review, m.err = m.session.Review()
		}
	case "b", "esc":
		m.err = m.session.ExitReview()
		m.review = nil
	case "t":
		m.err = m.session.Retry()
		m.review = nil
	default:
		if option, ok := optionKey(key); ok && m.question != nil {
			m.err = m.session.SelectAnswer(m.question.Index, option)
		}
	}
	return m.refresh(), nil
}

// refresh reads the session directly so key handling never waits on the subscription.
func (m Model) refresh() Model {
	m.snap = m.session.Snapshot()
	return m.refreshQuestion()
}

func (m Model) refreshQuestion() Model {
	m.question = nil
	if m.snap.Mode == engine.ModeActive || m.snap.Mode == engine.ModeSubmitted {
		if view, err := m.session.Current(); err == nil {
			m.question = &view
		}
	}
	return m
}

// optionKey maps "1".."9" to option indexes.
func optionKey(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > 9 {
		return 0, false
	}
	return n - 1, true
}

type snapshotMsg engine.Snapshot

type closedMsg struct{}

// waitForSnapshot blocks until the session publishes a snapshot or closes.
func waitForSnapshot(updates <-chan engine.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// Run drives session in the terminal until the participant quits.
func Run(session *engine.Session, in io.Reader, out io.Writer, opts Options) error {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	program := tea.NewProgram(NewModel(session, opts), tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
