package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-autotest/internal/tui/colors"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

// historyLimit bounds the command history.
const historyLimit = 100

// Input is the command line with shell-style history.
type Input struct {
	textInput     textinput.Model
	history       []string
	historyIndex  int
	currentInput  string
	terminalWidth int
}

func NewInput(placeholder string) *Input {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 1024
	ti.Prompt = ""

	return &Input{
		textInput:    ti,
		historyIndex: -1,
	}
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border, padding, prompt and its space
	usable := width - 6
	if usable < 20 {
		usable = 20
	}
	i.textInput.Width = usable
}

func (i *Input) Focus()                { i.textInput.Focus() }
func (i *Input) Blur()                 { i.textInput.Blur() }
func (i *Input) Value() string         { return i.textInput.Value() }
func (i *Input) SetValue(value string) { i.textInput.SetValue(value) }
func (i *Input) History() []string     { return i.history }

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// View renders the command line. busy dims the prompt while a command runs.
func (i *Input) View(insert, busy bool) string {
	prompt := lipgloss.NewStyle().Foreground(colors.Pass).Bold(true).Render("$")
	if busy {
		prompt = lipgloss.NewStyle().Foreground(colors.Pending).Bold(true).Render("…")
	}

	var content string
	if insert {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", i.textInput.View())
	} else {
		hint := lipgloss.NewStyle().Foreground(colors.Muted).Render("Press 'i' to type a command")
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", hint)
	}

	width := i.terminalWidth - 4
	if width < 10 {
		width = 10
	}
	style := styles.InputStyle.Width(width).AlignHorizontal(lipgloss.Left)
	if insert {
		style = style.BorderForeground(colors.Pass)
	}
	return style.Render(content)
}

// AddToHistory records command unless it is blank or repeats the last entry.
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		i.historyIndex = -1
		return
	}
	i.history = append(i.history, command)
	if len(i.history) > historyLimit {
		i.history = i.history[1:]
	}
	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}
	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}
	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}
	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
		return
	}
	i.historyIndex = -1
	i.textInput.SetValue(i.currentInput)
	i.currentInput = ""
}
