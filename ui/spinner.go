package ui

import (
	"context"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type workDoneMsg struct{}

type spinnerModel struct {
	spinner spinner.Model
	title   string
	done    bool
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(workDoneMsg); ok {
		m.done = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + DimStyle.Render(m.title)
}

// RunWithSpinner shows title next to a spinner on out until work returns.
// work always runs to completion; it is expected to watch ctx itself, so
// a cancelled ctx only stops the animation.
func RunWithSpinner(ctx context.Context, out io.Writer, title string, work func()) error {
	s := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(HighlightStyle))
	p := tea.NewProgram(spinnerModel{spinner: s, title: title},
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		work()
		p.Send(workDoneMsg{})
	}()

	_, err := p.Run()
	<-finished
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
