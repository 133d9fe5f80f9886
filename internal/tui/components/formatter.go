package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-autotest/internal/tui/colors"
)

// LineKind tells where a transcript line came from.
type LineKind int

const (
	KindRX LineKind = iota
	KindTX
	KindResult
	KindError
)

// LineMsg is one transcript line, delivered to the program as a tea.Msg.
type LineMsg struct {
	Timestamp time.Time
	Kind      LineKind
	Text      string
}

type LineFormatter struct {
	ShowTimestamps bool
}

func (f *LineFormatter) ToggleTimestamps() {
	f.ShowTimestamps = !f.ShowTimestamps
}

var (
	rxStyle     = lipgloss.NewStyle().Foreground(colors.Sky)
	txStyle     = lipgloss.NewStyle().Foreground(colors.Peach).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(colors.Subtext0).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colors.Fail).Bold(true)
	timeStyle   = lipgloss.NewStyle().Foreground(colors.Muted)
)

func (f *LineFormatter) Format(msg LineMsg) string {
	var b strings.Builder
	if f.ShowTimestamps {
		b.WriteString(timeStyle.Render(msg.Timestamp.Format("15:04:05.000")))
		b.WriteByte(' ')
	}
	switch msg.Kind {
	case KindTX:
		b.WriteString(txStyle.Render("> " + msg.Text))
	case KindResult:
		b.WriteString(resultStyle.Render(msg.Text))
	case KindError:
		b.WriteString(errorStyle.Render("! " + msg.Text))
	default:
		b.WriteString(rxStyle.Render(msg.Text))
	}
	return b.String()
}

func (f *LineFormatter) FormatAll(msgs []LineMsg) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, f.Format(m))
	}
	return out
}

// ResultLine summarizes a finished command.
func ResultLine(status string, elapsed time.Duration, matched bool, pattern string) string {
	s := fmt.Sprintf("[%s in %s]", status, elapsed.Round(time.Millisecond))
	if matched {
		s += fmt.Sprintf(" matched %q", pattern)
	}
	return s
}
