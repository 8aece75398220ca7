package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// spinnerDelay keeps fast operations, such as resolving a cached guest
// session, from flashing a spinner.
const spinnerDelay = 150 * time.Millisecond

type revealSpinnerMsg struct{}

type workDoneMsg[T any] struct {
	value T
	err   error
}

type spinnerModel[T any] struct {
	spinner spinner.Model
	label   string
	work    tea.Cmd
	visible bool
	done    bool
	value   T
	err     error
}

func newSpinnerModel[T any](label string, work tea.Cmd) spinnerModel[T] {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return spinnerModel[T]{
		spinner: s,
		label:   label,
		work:    work,
	}
}

func (m spinnerModel[T]) Init() tea.Cmd {
	reveal := tea.Tick(spinnerDelay, func(time.Time) tea.Msg {
		return revealSpinnerMsg{}
	})
	return tea.Batch(m.work, reveal)
}

func (m spinnerModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case revealSpinnerMsg:
		if m.done {
			return m, nil
		}
		m.visible = true
		return m, m.spinner.Tick
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case workDoneMsg[T]:
		m.done = true
		m.value = msg.value
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m spinnerModel[T]) View() string {
	if m.done || !m.visible {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runSpinner runs work and returns its result, drawing label on output
// when work outlasts spinnerDelay.
func runSpinner[T any](ctx context.Context, output io.Writer, label string, work func(context.Context) (T, error)) (T, error) {
	var zero T
	workCmd := func() tea.Msg {
		value, err := work(ctx)
		return workDoneMsg[T]{value: value, err: err}
	}

	p := tea.NewProgram(
		newSpinnerModel[T](label, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return zero, err
	}

	result, ok := finalModel.(spinnerModel[T])
	if !ok {
		return zero, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.value, result.err
}
