package keys

import "github.com/charmbracelet/bubbles/key"

// ConsoleKeys are the bindings of the interactive console. Normal mode
// scrolls the transcript; insert mode edits the command line.
type ConsoleKeys struct {
	Quit       key.Binding
	ForceQuit  key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding
	Enter      key.Binding
	Up         key.Binding
	Down       key.Binding
	Clear      key.Binding
	GotoTop    key.Binding
	GotoBottom key.Binding
	Timestamps key.Binding
	HistUp     key.Binding
	HistDown   key.Binding
}

func NewConsoleKeys() ConsoleKeys {
	return ConsoleKeys{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit from any mode"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		InsertMode: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "type command"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "normal mode"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run command"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear transcript"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("G"),
			key.WithHelp("G", "bottom"),
		),
		Timestamps: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle timestamps"),
		),
		HistUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "previous command"),
		),
		HistDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next command"),
		),
	}
}

func (k ConsoleKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Enter, k.Quit}
}

func (k ConsoleKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Enter, k.HistUp, k.HistDown},
		{k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.Clear, k.Timestamps, k.Help, k.Quit, k.ForceQuit},
	}
}
