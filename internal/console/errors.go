package console

import "errors"

var (
	// ErrTransport wraps any read/write failure on the serial line. The
	// in-flight operation fails; the link recovers on its own.
	ErrTransport = errors.New("serial transport error")

	// ErrLoginTimeout means the shell prompt never appeared within
	// Session.LoginTimeout. No command can run without a session.
	ErrLoginTimeout = errors.New("timed out waiting for login")

	ErrStopped        = errors.New("console stopped")
	ErrNotStarted     = errors.New("console not started")
	ErrInvalidSession = errors.New("invalid session")
)
