package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/tui/colors"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Accent).
			Background(colors.Surface0).
			Padding(0, 1)

	PassStyle = lipgloss.NewStyle().
			Foreground(colors.Pass).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(colors.Fail).
			Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(colors.Pending).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(colors.Muted)

	// Tables
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Accent)

	TableBaseStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface2).
			Align(lipgloss.Left)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Fail)
)

// ConnStateStyle colors a link state: green open, yellow reopening, red closed.
func ConnStateStyle(s console.ConnState) lipgloss.Style {
	switch s {
	case console.StateOpen:
		return PassStyle
	case console.StateReopening:
		return PendingStyle
	default:
		return FailStyle
	}
}

// LoginStateStyle colors a login state.
func LoginStateStyle(s console.LoginState) lipgloss.Style {
	switch s {
	case console.LoggedIn:
		return PassStyle
	case console.CredentialSent:
		return PendingStyle
	default:
		return MutedStyle
	}
}
