package console

import (
	"fmt"
	"time"
)

// Defaults applied by DefaultSession.
const (
	DefaultBaudRate        = 115200
	DefaultReadTimeout     = time.Second
	DefaultLoginTimeout    = 5 * time.Minute
	DefaultIdleProvocation = 5 * time.Second
	DefaultReopenBackoff   = time.Second
	DefaultUsername        = "root"
)

// Session is the immutable description of one console run: where the line
// is, how to log in, and what the remote shell looks like.
type Session struct {
	SerialFile  string
	BaudRate    int
	ReadTimeout time.Duration // idle gap after which a partial line is delivered

	AutoLogin       bool
	Username        string
	Password        string
	LoginPrompts    []string // scanned in order
	PasswordPrompts []string // scanned in order
	ShellPrompt     string   // marks both login completion and command completion

	StdoutLog bool
	LogDir    string

	LoginTimeout    time.Duration
	IdleProvocation time.Duration
	ReopenBackoff   time.Duration
}

// DefaultSession returns a Session with the documented defaults.
func DefaultSession() Session {
	return Session{
		BaudRate:        DefaultBaudRate,
		ReadTimeout:     DefaultReadTimeout,
		AutoLogin:       true,
		Username:        DefaultUsername,
		LoginPrompts:    []string{"login:"},
		PasswordPrompts: []string{"Password:"},
		LogDir:          "./logs",
		LoginTimeout:    DefaultLoginTimeout,
		IdleProvocation: DefaultIdleProvocation,
		ReopenBackoff:   DefaultReopenBackoff,
	}
}

// Validate reports the first inconsistency in s.
func (s Session) Validate() error {
	if s.SerialFile == "" {
		return fmt.Errorf("%w: serial_file is required", ErrInvalidSession)
	}
	if s.ShellPrompt == "" {
		return fmt.Errorf("%w: shell_prompt is required", ErrInvalidSession)
	}
	if s.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read_timeout must be positive", ErrInvalidSession)
	}
	if s.AutoLogin {
		if s.Username == "" {
			return fmt.Errorf("%w: auto_login needs a username", ErrInvalidSession)
		}
		if s.LoginTimeout <= 0 {
			return fmt.Errorf("%w: login_timeout must be positive", ErrInvalidSession)
		}
	}
	return nil
}
