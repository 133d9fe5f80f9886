package console

import (
	"strings"
	"sync"
	"time"
)

// LoginState is where the auto-login handshake stands.
type LoginState int

const (
	AwaitingPrompt LoginState = iota
	CredentialSent
	LoggedIn
)

func (s LoginState) String() string {
	switch s {
	case CredentialSent:
		return "credential_sent"
	case LoggedIn:
		return "logged_in"
	default:
		return "awaiting_prompt"
	}
}

// Credential records what was last sent while in CredentialSent.
type Credential int

const (
	CredentialNone Credential = iota
	CredentialUsername
	CredentialPassword
)

// Action tells the reader what to do after a Login transition.
type Action int

const (
	ActionNone Action = iota
	ActionSendUsername
	ActionSendPassword
	ActionLoggedIn
)

// Login is the auto-login state machine. It never touches the port; the
// reader performs the writes an Action asks for.
type Login struct {
	shellPrompt     string
	loginPrompts    []string
	passwordPrompts []string
	idle            time.Duration

	mu     sync.Mutex
	state  LoginState
	sent   Credential
	lastRx time.Time
	done   chan struct{}
}

// NewLogin returns a machine in AwaitingPrompt whose idle clock starts at now.
func NewLogin(s Session, now time.Time) *Login {
	return &Login{
		shellPrompt:     s.ShellPrompt,
		loginPrompts:    s.LoginPrompts,
		passwordPrompts: s.PasswordPrompts,
		idle:            s.IdleProvocation,
		lastRx:          now,
		done:            make(chan struct{}),
	}
}

// OnLine feeds one received line. The shell prompt wins over login and
// password prompts; LoggedIn is never left.
func (l *Login) OnLine(line string, now time.Time) Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastRx = now
	if l.state == LoggedIn {
		return ActionNone
	}
	if l.shellPrompt != "" && strings.Contains(line, l.shellPrompt) {
		l.state = LoggedIn
		l.sent = CredentialNone
		close(l.done)
		return ActionLoggedIn
	}
	if containsAny(line, l.loginPrompts) {
		l.state = CredentialSent
		l.sent = CredentialUsername
		return ActionSendUsername
	}
	if containsAny(line, l.passwordPrompts) {
		l.state = CredentialSent
		l.sent = CredentialPassword
		return ActionSendPassword
	}
	return ActionNone
}

// OnIdle is polled while the line is quiet. Only AwaitingPrompt provokes
// the board, and each provocation restarts the idle clock.
func (l *Login) OnIdle(now time.Time) Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != AwaitingPrompt || l.idle <= 0 {
		return ActionNone
	}
	if now.Sub(l.lastRx) < l.idle {
		return ActionNone
	}
	l.lastRx = now
	return ActionSendUsername
}

// Touch restarts the idle clock. The reader calls it when the reader
// starts and whenever bytes arrive, whole line or not.
func (l *Login) Touch(now time.Time) {
	l.mu.Lock()
	l.lastRx = now
	l.mu.Unlock()
}

func (l *Login) State() (LoginState, Credential) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.sent
}

// Done is closed on the transition to LoggedIn.
func (l *Login) Done() <-chan struct{} {
	return l.done
}

func containsAny(line string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(line, n) {
			return true
		}
	}
	return false
}
