package ui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"toolchat/model"
)

// inputClosedMsg reports that the prompt's input reached EOF.
type inputClosedMsg struct{}

type confirmModel struct {
	confirm model.Confirmation
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirm.Result != model.ConfirmPending {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyRunes:
			// piped input arrives as words rather than single keys
			switch strings.ToLower(string(msg.Runes)) {
			case "y", "yes":
				return m.answer(model.ConfirmOK)
			}
			return m.answer(model.ConfirmCancel)
		case tea.KeyEnter, tea.KeyCtrlJ, tea.KeyEsc, tea.KeyCtrlC:
			return m.answer(model.ConfirmCancel)
		}
	case inputClosedMsg:
		return m.answer(model.ConfirmCancel)
	}
	return m, nil
}

func (m confirmModel) answer(result model.ConfirmResult) (tea.Model, tea.Cmd) {
	m.confirm.Result = result
	return m, tea.Quit
}

func (m confirmModel) View() string {
	view := RenderConfirmation(m.confirm)
	if m.confirm.Result == model.ConfirmPending {
		view += "\n" + FormatFooter("y", "Yes", "n", "No")
	}
	return view + "\n"
}

// eofNotifier calls onEOF once when the wrapped reader is exhausted. The
// program's read loop stops silently at EOF, so the prompt would
// otherwise wait forever on a closed stdin.
type eofNotifier struct {
	r     io.Reader
	once  sync.Once
	onEOF func()
}

func (e *eofNotifier) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		e.once.Do(e.onEOF)
	}
	return n, err
}

// AskConfirmation shows c and reads a y/n answer from in. Anything but
// yes, including closed input, cancels. When ctx ends first the
// confirmation stays unanswered and ctx's error is returned.
func AskConfirmation(ctx context.Context, in io.Reader, out io.Writer, c model.Confirmation) (model.ConfirmResult, error) {
	c.Result = model.ConfirmPending
	input := &eofNotifier{r: in}
	p := tea.NewProgram(confirmModel{confirm: c},
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)
	input.onEOF = func() { go p.Send(inputClosedMsg{}) }

	final, err := p.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.ConfirmPending, ctxErr
	}
	if err != nil {
		return model.ConfirmPending, err
	}

	result := final.(confirmModel).confirm.Result
	if result == model.ConfirmPending {
		return model.ConfirmCancel, nil
	}
	return result, nil
}
