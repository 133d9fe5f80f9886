package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// readLoop is the only consumer of the port. It logs and mirrors every
// line, feeds the login machine and hands lines to the command in flight.
func (c *Console) readLoop(ctx context.Context) {
	defer c.wg.Done()
	c.log.Debug().Msg("reader started")

	for c.running.Load() {
		line, rx, r, err := c.link.readLine()
		if err != nil {
			if !c.running.Load() || ctx.Err() != nil {
				break
			}
			c.log.Error().Err(err).Msg("error reading from serial port")
			if r != nil {
				r.fail(err)
			}
			if rerr := c.link.Reopen(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) && !errors.Is(rerr, ErrStopped) {
				c.log.Debug().Err(rerr).Msg("reopen attempt failed")
			}
			continue
		}

		if rx && c.sess.AutoLogin {
			c.login.Touch(time.Now())
		}
		if line == "" {
			c.onIdle()
			continue
		}
		c.dispatch(line, r)
	}

	c.log.Debug().Msg("reader exiting")
}

func (c *Console) dispatch(line string, r *route) {
	now := time.Now()

	c.log.Debug().Str("line", strings.TrimRight(line, "\r\n")).Msg("rx")
	if c.mirror != nil {
		io.WriteString(c.mirror, line)
	}
	for _, h := range c.handlers {
		h(line)
	}

	if c.sess.AutoLogin {
		if state, _ := c.login.State(); state != LoggedIn {
			c.perform(c.login.OnLine(line, now))
		}
	}

	if r != nil {
		r.deliver(line)
	}
}

func (c *Console) onIdle() {
	if !c.sess.AutoLogin {
		return
	}
	if c.login.OnIdle(time.Now()) == ActionSendUsername {
		c.log.Info().
			Dur("idle", c.sess.IdleProvocation).
			Msg("no output, sending username to provoke a prompt")
		c.send(c.sess.Username)
	}
}

func (c *Console) perform(a Action) {
	switch a {
	case ActionSendUsername:
		c.log.Info().Str("username", c.sess.Username).Msg("login prompt seen, sending username")
		c.send(c.sess.Username)
	case ActionSendPassword:
		c.log.Info().Msg("password prompt seen, sending password")
		c.send(c.sess.Password)
	case ActionLoggedIn:
		c.log.Info().Str("shell_prompt", c.sess.ShellPrompt).Msg("shell prompt seen")
	}
}
