package input

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// promptModel is a single-line prompt. Esc and Ctrl+C cancel; Up and Down
// walk the session history.
type promptModel struct {
	input     textinput.Model
	history   []string
	pos       int
	done      bool
	cancelled bool
}

func newPromptModel(prompt, color string, history []string) promptModel {
	ti := textinput.New()
	ti.Prompt = prompt
	ti.CharLimit = 0
	ti.Placeholder = "Ask anything"
	if color != "" {
		ti.PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	ti.Focus()
	return promptModel{input: ti, history: history, pos: len(history)}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				m.cancelled = true
				return m, tea.Quit
			}
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyUp:
			if m.pos > 0 {
				m.pos--
				m.input.SetValue(m.history[m.pos])
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if m.pos < len(m.history) {
				m.pos++
				if m.pos == len(m.history) {
					m.input.SetValue("")
				} else {
					m.input.SetValue(m.history[m.pos])
				}
				m.input.CursorEnd()
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.cancelled {
		return ""
	}
	if m.done {
		// leave the submitted line in the scrollback
		return fmt.Sprintf("%s%s\n", m.input.PromptStyle.Render(m.input.Prompt), m.input.Value())
	}
	return m.input.View()
}

type teaReader struct {
	in      io.Reader
	out     io.Writer
	color   string
	history []string
}

func newTeaReader(in io.Reader, out io.Writer, color string) *teaReader {
	return &teaReader{in: in, out: out, color: color}
}

func (r *teaReader) ReadLine(prompt string) (string, error) {
	p := tea.NewProgram(newPromptModel(prompt, r.color, r.history),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m := final.(promptModel)
	if m.cancelled {
		return "", ErrExit
	}
	text := m.input.Value()
	if text != "" {
		r.history = append(r.history, text)
	}
	return text, nil
}

func (r *teaReader) Close() error { return nil }
