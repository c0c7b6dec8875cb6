package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title    lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	option   lipgloss.Style
	hint     lipgloss.Style
	help     lipgloss.Style
}

func newStyles() styles {
	accent := lipgloss.Color("#01cdfe")
	muted := lipgloss.Color("#9ca3d8")
	return styles{
		title:    lipgloss.NewStyle().Bold(true),
		cursor:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		selected: lipgloss.NewStyle().Foreground(accent),
		option:   lipgloss.NewStyle(),
		hint:     lipgloss.NewStyle().Foreground(muted),
		help:     lipgloss.NewStyle().Foreground(muted).Italic(true),
	}
}

// TUI prompts with bubbletea programs.
type TUI struct {
	in  io.Reader
	out io.Writer
}

func (t *TUI) run(ctx context.Context, m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m, tea.WithInput(t.in), tea.WithOutput(t.out), tea.WithContext(ctx))
	return p.Run()
}

type selectModel struct {
	title    string
	choices  []Choice
	cursor   int
	done     bool
	canceled bool
	styles   styles
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.canceled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.title.Render(m.title))
	b.WriteString("\n")
	for i, c := range m.choices {
		line := m.styles.option.Render("  " + c.Label)
		if i == m.cursor {
			line = m.styles.cursor.Render("› ") + m.styles.selected.Render(c.Label)
		}
		if c.Hint != "" {
			line += "  " + m.styles.hint.Render(c.Hint)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.help.Render("↑/↓ move • enter select • esc cancel"))
	b.WriteString("\n")
	return b.String()
}

func (t *TUI) Select(ctx context.Context, message string, choices []Choice) (int, error) {
	if len(choices) == 0 {
		return 0, fmt.Errorf("nothing to choose from")
	}
	final, err := t.run(ctx, selectModel{title: message, choices: choices, styles: newStyles()})
	if err != nil {
		return 0, err
	}
	m := final.(selectModel)
	if m.canceled {
		return 0, canceled(message)
	}
	return m.cursor, nil
}

type confirmModel struct {
	title    string
	value    bool
	done     bool
	canceled bool
	styles   styles
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "y", "Y":
		m.value, m.done = true, true
		return m, tea.Quit
	case "n", "N":
		m.value, m.done = false, true
		return m, tea.Quit
	case "left", "right", "h", "l", "tab":
		m.value = !m.value
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	yes, no := m.styles.option.Render(" yes "), m.styles.option.Render(" no ")
	if m.value {
		yes = m.styles.cursor.Render("[yes]")
	} else {
		no = m.styles.cursor.Render("[no]")
	}
	return fmt.Sprintf("%s  %s %s\n%s\n", m.styles.title.Render(m.title), yes, no,
		m.styles.help.Render("y/n or ←/→ then enter • esc cancel"))
}

func (t *TUI) Confirm(ctx context.Context, message string, def bool) (bool, error) {
	final, err := t.run(ctx, confirmModel{title: message, value: def, styles: newStyles()})
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.canceled {
		return false, canceled(message)
	}
	return m.value, nil
}

type inputModel struct {
	title    string
	input    textinput.Model
	def      string
	done     bool
	canceled bool
	styles   styles
}

func newInputModel(title, def string, secret bool) inputModel {
	in := textinput.New()
	in.Placeholder = def
	in.CharLimit = 4096
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	in.Focus()
	return inputModel{title: title, input: in, def: def, styles: newStyles()}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			return m, tea.Quit
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	return m.styles.title.Render(m.title) + "\n" + m.input.View() + "\n"
}

func (m inputModel) value() string {
	v := strings.TrimSpace(m.input.Value())
	if v == "" {
		return m.def
	}
	return v
}

func (t *TUI) input(ctx context.Context, message, def string, secret bool) (string, error) {
	final, err := t.run(ctx, newInputModel(message, def, secret))
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.canceled {
		return "", canceled(message)
	}
	return m.value(), nil
}

func (t *TUI) Input(ctx context.Context, message, def string) (string, error) {
	return t.input(ctx, message, def, false)
}

func (t *TUI) Secret(ctx context.Context, message string) (string, error) {
	return t.input(ctx, message, "", true)
}
