package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// MaxLines caps the transcript kept in memory.
const MaxLines = 5000

// Terminal is a scrolling transcript that follows new lines while the
// view is at the bottom.
type Terminal struct {
	viewport  viewport.Model
	formatter *LineFormatter
	lines     []LineMsg
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: &LineFormatter{},
	}
}

func (t *Terminal) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh(true)
}

func (t *Terminal) Width() int { return t.viewport.Width }

func (t *Terminal) Lines() []LineMsg { return t.lines }

func (t *Terminal) AddLine(msg LineMsg) {
	follow := t.viewport.AtBottom()
	t.lines = append(t.lines, msg)
	if len(t.lines) > MaxLines {
		t.lines = t.lines[len(t.lines)-MaxLines:]
	}
	t.refresh(follow)
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
	t.refresh(t.viewport.AtBottom())
}

func (t *Terminal) Clear() {
	t.lines = nil
	t.viewport.SetContent("")
	t.viewport.GotoTop()
}

func (t *Terminal) refresh(follow bool) {
	t.viewport.SetContent(strings.Join(t.formatter.FormatAll(t.lines), "\n"))
	if follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) ScrollUp()   { t.viewport.LineUp(1) }
func (t *Terminal) ScrollDown() { t.viewport.LineDown(1) }
func (t *Terminal) GotoTop()    { t.viewport.GotoTop() }
func (t *Terminal) GotoBottom() { t.viewport.GotoBottom() }

// Update forwards only window and mouse messages so the viewport does not
// consume key bindings.
func (t *Terminal) Update(msg tea.Msg) tea.Cmd {
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
