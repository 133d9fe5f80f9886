// Package models holds the bubbletea model of the interactive console.
package models

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/tui/components"
	"github.com/allbin/go-serial-autotest/internal/tui/keys"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

// InputMode is the vim-like editing mode.
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// Console is the part of console.Console the model drives.
type Console interface {
	Start(ctx context.Context) error
	Run(ctx context.Context, inv console.Invocation) (console.Result, error)
	ConnState() console.ConnState
	LoginState() console.LoginState
}

// StartedMsg reports the end of Console.Start.
type StartedMsg struct{ Err error }

// ResultMsg carries a finished command.
type ResultMsg struct {
	Result console.Result
	Err    error
}

type tickMsg time.Time

// LineSink forwards console lines into the program. Handle blocks until
// the model takes the line or done closes.
type LineSink struct {
	ch   chan components.LineMsg
	done <-chan struct{}
}

func NewLineSink(done <-chan struct{}) *LineSink {
	return &LineSink{ch: make(chan components.LineMsg, 256), done: done}
}

// Handle is a console line handler.
func (s *LineSink) Handle(line string) {
	select {
	case s.ch <- components.LineMsg{Timestamp: time.Now(), Kind: components.KindRX, Text: line}:
	case <-s.done:
	}
}

func (s *LineSink) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.ch:
			return msg
		case <-s.done:
			return nil
		}
	}
}

// ConsoleModel is an interactive shell over a console: typed commands run
// through Console.Run while every received line scrolls by.
type ConsoleModel struct {
	ctx     context.Context
	con     Console
	sink    *LineSink
	timeout time.Duration

	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConsoleKeys

	mode    InputMode
	ready   bool
	started bool
	busy    bool
	now     func() time.Time
}

func NewConsoleModel(ctx context.Context, con Console, sink *LineSink, sess console.Session, timeout time.Duration) *ConsoleModel {
	if timeout <= 0 {
		timeout = console.DefaultCommandTimeout
	}
	return &ConsoleModel{
		ctx:       ctx,
		con:       con,
		sink:      sink,
		timeout:   timeout,
		terminal:  components.NewTerminal(0, 0),
		statusBar: components.NewStatusBar(sess.SerialFile, sess.BaudRate),
		input:     components.NewInput("Command to run on the board..."),
		help:      help.New(),
		keys:      keys.NewConsoleKeys(),
		now:       time.Now,
	}
}

func (m *ConsoleModel) Init() tea.Cmd {
	start := func() tea.Msg {
		return StartedMsg{Err: m.con.Start(m.ctx)}
	}
	return tea.Batch(start, m.sink.wait(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *ConsoleModel) note(kind components.LineKind, text string) {
	m.terminal.AddLine(components.LineMsg{Timestamp: m.now(), Kind: kind, Text: text})
}

func (m *ConsoleModel) run(command string) tea.Cmd {
	inv := console.Invocation{Command: command, Timeout: m.timeout}
	return func() tea.Msg {
		res, err := m.con.Run(m.ctx, inv)
		return ResultMsg{Result: res, Err: err}
	}
}

func (m *ConsoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// border, input box, status bar and help line
		m.terminal.SetSize(msg.Width, msg.Height-6)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.ready = true
		return m, m.terminal.Update(msg)

	case tea.MouseMsg:
		return m, m.terminal.Update(msg)

	case components.LineMsg:
		m.terminal.AddLine(msg)
		return m, m.sink.wait()

	case StartedMsg:
		if msg.Err != nil {
			m.note(components.KindError, "console start: "+msg.Err.Error())
			return m, nil
		}
		m.started = true
		m.note(components.KindResult, "[console ready]")
		return m, nil

	case ResultMsg:
		m.busy = false
		if msg.Err != nil {
			m.note(components.KindError, msg.Err.Error())
			return m, nil
		}
		r := msg.Result
		m.note(components.KindResult, components.ResultLine(r.Status.String(), r.Duration, r.Matched, r.Pattern))
		return m, nil

	case tickMsg:
		return m, tick()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if m.mode == InputModeInsert {
			return m.updateInsert(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m *ConsoleModel) updateInsert(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.mode = InputModeNormal
		m.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		return m, m.submit()
	case key.Matches(msg, m.keys.HistUp):
		m.input.NavigateHistoryUp()
		return m, nil
	case key.Matches(msg, m.keys.HistDown):
		m.input.NavigateHistoryDown()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs the command line. An empty line is sent too, which is how
// a stalled prompt gets provoked.
func (m *ConsoleModel) submit() tea.Cmd {
	if !m.started {
		m.note(components.KindError, "console not ready")
		return nil
	}
	if m.busy {
		m.note(components.KindError, "a command is still running")
		return nil
	}
	command := strings.TrimSpace(m.input.Value())
	m.input.AddToHistory(command)
	m.input.SetValue("")
	m.note(components.KindTX, command)
	m.busy = true
	return m.run(command)
}

func (m *ConsoleModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.InsertMode):
		m.mode = InputModeInsert
		m.input.Focus()
	case key.Matches(msg, m.keys.Clear):
		m.terminal.Clear()
	case key.Matches(msg, m.keys.Timestamps):
		m.terminal.ToggleTimestamps()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.terminal.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.terminal.ScrollDown()
	case key.Matches(msg, m.keys.GotoTop):
		m.terminal.GotoTop()
	case key.Matches(msg, m.keys.GotoBottom):
		m.terminal.GotoBottom()
	}
	return m, nil
}

func (m *ConsoleModel) View() string {
	content := "Initializing..."
	if m.ready {
		content = m.terminal.View()
	}

	status := m.statusBar.View(components.Status{
		Insert:    m.mode == InputModeInsert,
		Conn:      m.con.ConnState(),
		Login:     m.con.LoginState(),
		Busy:      m.busy,
		Timestamp: m.now().Format("15:04:05"),
	})

	return lipgloss.JoinVertical(
		lipgloss.Left,
		styles.ContentBorderStyle.Render(content),
		m.input.View(m.mode == InputModeInsert, m.busy),
		status,
		m.help.View(m.keys),
	)
}

// Mode returns the current input mode.
func (m *ConsoleModel) Mode() InputMode { return m.mode }

// Busy reports whether a command is in flight.
func (m *ConsoleModel) Busy() bool { return m.busy }

// Transcript returns the lines shown so far.
func (m *ConsoleModel) Transcript() []components.LineMsg { return m.terminal.Lines() }
