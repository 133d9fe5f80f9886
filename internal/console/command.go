package console

import (
	"context"
	"strings"
	"time"
)

// DefaultCommandTimeout applies when an Invocation sets no timeout.
const DefaultCommandTimeout = 10 * time.Second

// Status is how a command ended.
type Status int

const (
	StatusCompleted Status = iota
	StatusTimedOut
	StatusTransportError
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusTimedOut:
		return "timed_out"
	case StatusTransportError:
		return "transport_error"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Invocation is one command to type at the shell.
type Invocation struct {
	Command  string
	Timeout  time.Duration
	Patterns []string // the first one seen on an output line sets Result.Matched
}

// Result is what came back for an Invocation. A timeout is a normal
// outcome and carries whatever output was collected, never a match.
type Result struct {
	Command  string
	Output   string
	Matched  bool
	Pattern  string
	Status   Status
	Duration time.Duration
}

// Run sends inv.Command and collects output until the shell prompt
// returns, inv.Timeout elapses or the console stops. Commands are
// serialized; the reader stays the only consumer of the port.
func (c *Console) Run(ctx context.Context, inv Invocation) (Result, error) {
	res := Result{Command: inv.Command}
	if !c.started.Load() {
		res.Status = StatusStopped
		return res, ErrNotStarted
	}
	if !c.running.Load() {
		res.Status = StatusStopped
		return res, ErrStopped
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	start := time.Now()
	tr := newTranscript(inv.Command, c.sess.ShellPrompt, inv.Patterns)

	c.log.Info().Str("command", inv.Command).Dur("timeout", timeout).Msg("running command")

	r := newRoute()
	if err := c.link.attach(r, inv.Command); err != nil {
		c.log.Error().Err(err).Str("command", inv.Command).Msg("failed to send command")
		go c.link.Reopen(c.ctx)
		res.Status = StatusTransportError
		res.Duration = time.Since(start)
		return res, err
	}
	defer c.link.detach(r)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	finish := func(status Status, err error) (Result, error) {
		res.Output = tr.String()
		// only a command that ran to its prompt can match
		if status == StatusCompleted {
			res.Matched, res.Pattern = tr.matched, tr.pattern
		}
		res.Status = status
		res.Duration = time.Since(start)
		ev := c.log.Info()
		if status != StatusCompleted {
			ev = c.log.Warn()
		}
		ev.Str("command", inv.Command).
			Stringer("status", status).
			Bool("matched", res.Matched).
			Dur("duration", res.Duration).
			Str("output", res.Output).
			Msg("command finished")
		return res, err
	}

	for {
		select {
		case line := <-r.lines:
			if tr.add(line) {
				return finish(StatusCompleted, nil)
			}
		case err := <-r.errs:
			return finish(StatusTransportError, err)
		case <-timer.C:
			return finish(StatusTimedOut, nil)
		case <-c.stopped:
			return finish(StatusStopped, ErrStopped)
		case <-ctx.Done():
			return finish(StatusStopped, ctx.Err())
		}
	}
}

// transcript folds console lines into a command's output: carriage returns
// go, the echoed command is cut from the front and the trailing prompt
// line ends the collection.
type transcript struct {
	command  string
	prompt   string
	patterns []string

	out     strings.Builder
	echoed  bool
	matched bool
	pattern string
}

func newTranscript(command, prompt string, patterns []string) *transcript {
	return &transcript{command: command, prompt: prompt, patterns: patterns}
}

// add reports whether line carried the shell prompt.
func (t *transcript) add(line string) bool {
	line = strings.ReplaceAll(line, "\r", "")
	if !t.echoed && strings.TrimSpace(line) != "" {
		t.echoed = true
		if t.command != "" && strings.HasPrefix(line, t.command) {
			line = strings.TrimLeft(line[len(t.command):], " \t\n")
		}
	}

	if i := strings.Index(line, t.prompt); t.prompt != "" && i >= 0 {
		t.out.WriteString(strings.TrimRight(line[:i], " \t"))
		return true
	}

	t.out.WriteString(line)
	t.match(line)
	return false
}

func (t *transcript) match(s string) {
	if t.matched {
		return
	}
	for _, p := range t.patterns {
		if p != "" && strings.Contains(s, p) {
			t.matched = true
			t.pattern = p
			return
		}
	}
}

func (t *transcript) String() string {
	return strings.TrimRight(t.out.String(), "\n")
}
