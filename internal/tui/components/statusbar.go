package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/tui/colors"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

// Status is what the status bar shows on each frame.
type Status struct {
	Insert    bool
	Conn      console.ConnState
	Login     console.LoginState
	Busy      bool
	Timestamp string
}

type StatusBar struct {
	device string
	baud   int
	width  int
}

func NewStatusBar(device string, baud int) *StatusBar {
	return &StatusBar{device: device, baud: baud}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) View(st Status) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	modeText := "NORMAL"
	if st.Insert {
		modeStyle = modeStyle.Background(colors.Pass)
		modeText = "INSERT"
	}
	mode := modeStyle.Render(modeText)

	device := lipgloss.NewStyle().
		Foreground(colors.Accent).
		Bold(true).
		Padding(0, 1).
		Render(sb.device)

	conn := styles.ConnStateStyle(st.Conn).Padding(0, 1).Render(st.Conn.String())
	login := styles.LoginStateStyle(st.Login).Padding(0, 1).Render(st.Login.String())

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := lipgloss.JoinHorizontal(lipgloss.Left, mode, device, conn, divider, login)
	if st.Busy {
		busy := styles.PendingStyle.Padding(0, 1).Render("running")
		left = lipgloss.JoinHorizontal(lipgloss.Left, left, divider, busy)
	}

	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render(fmt.Sprintf("%d baud 8N1", sb.baud))
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(st.Timestamp)
	right := lipgloss.JoinHorizontal(lipgloss.Left, details, divider, clock)

	spacerWidth := width - lipgloss.Width(left) - lipgloss.Width(right)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, left, spacer, right))
}
