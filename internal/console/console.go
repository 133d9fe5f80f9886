package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultResetAfter is how many failed reopens trigger a USB reset.
const DefaultResetAfter = 3

// Console drives one board's serial console: a single reader, the
// auto-login responder and one command at a time.
type Console struct {
	sess     Session
	link     *Link
	login    *Login
	log      zerolog.Logger
	mirror   io.Writer
	handlers []func(string)

	cmdMu   sync.Mutex
	started atomic.Bool
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup

	resetFn    func(context.Context) error
	resetAfter int
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Console) { c.log = log }
}

// WithMirror copies every received line to w. When Session.StdoutLog is set
// and no mirror is given, os.Stdout is used.
func WithMirror(w io.Writer) Option {
	return func(c *Console) { c.mirror = w }
}

// WithLineHandler registers fn to be called from the reader for every line.
// fn runs on the reader goroutine and should return quickly.
func WithLineHandler(fn func(line string)) Option {
	return func(c *Console) { c.handlers = append(c.handlers, fn) }
}

// WithUSBReset installs fn as the escalation step run once after failed
// consecutive reopens. after <= 0 selects DefaultResetAfter.
func WithUSBReset(fn func(context.Context) error, after int) Option {
	return func(c *Console) {
		c.resetFn = fn
		c.resetAfter = after
	}
}

// New validates sess and builds a Console around open. Nothing touches the
// port until Start.
func New(sess Session, open Opener, opts ...Option) (*Console, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		return nil, fmt.Errorf("%w: opener is required", ErrInvalidSession)
	}
	if sess.ReopenBackoff <= 0 {
		sess.ReopenBackoff = DefaultReopenBackoff
	}

	c := &Console{
		sess:    sess,
		log:     zerolog.Nop(),
		stopped: make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	if c.mirror == nil && sess.StdoutLog {
		c.mirror = os.Stdout
	}

	c.log = c.log.With().Str("serial_file", sess.SerialFile).Logger()
	c.link = newLink(open, sess.ReadTimeout, sess.ReopenBackoff, c.log.With().Str("component", "link").Logger())
	if c.resetFn != nil {
		after := c.resetAfter
		if after <= 0 {
			after = DefaultResetAfter
		}
		c.link.escalateAfter = int32(after)
		c.link.escalate = func() error { return c.resetFn(c.ctx) }
	}
	c.login = NewLogin(sess, time.Now())
	return c, nil
}

// Session returns the configuration the console was built with.
func (c *Console) Session() Session { return c.sess }

// ConnState reports the link's connection state.
func (c *Console) ConnState() ConnState { return c.link.State() }

// LoginState reports the auto-login handshake state.
func (c *Console) LoginState() LoginState {
	s, _ := c.login.State()
	return s
}

// Start opens the port and launches the reader. With AutoLogin it blocks
// until the shell prompt is seen, Session.LoginTimeout passes, ctx is done
// or Stop is called.
func (c *Console) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("console already started")
	}
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	if err := c.link.Open(); err != nil {
		c.log.Warn().Err(err).Msg("initial open failed, reader will retry")
	}

	c.running.Store(true)
	c.login.Touch(time.Now())

	c.wg.Add(1)
	go c.readLoop(c.ctx)

	if !c.sess.AutoLogin {
		return nil
	}

	c.log.Info().Dur("timeout", c.sess.LoginTimeout).Msg("waiting for auto login")
	timer := time.NewTimer(c.sess.LoginTimeout)
	defer timer.Stop()

	select {
	case <-c.login.Done():
		c.log.Info().Msg("auto login successful")
		return nil
	case <-timer.C:
		c.log.Error().Dur("timeout", c.sess.LoginTimeout).Msg("auto login timed out")
		return fmt.Errorf("%w after %s", ErrLoginTimeout, c.sess.LoginTimeout)
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the reader, closes the port and releases any command in
// flight. It is safe to call more than once and before Start.
func (c *Console) Stop() error {
	var err error
	c.stop.Do(func() {
		c.running.Store(false)
		close(c.stopped)
		c.cancel()
		err = c.link.Close()
		c.wg.Wait()
		c.log.Info().Msg("console stopped")
	})
	return err
}

// send writes one line through the guard on behalf of the login responder.
func (c *Console) send(line string) {
	if err := c.link.WriteLine(line); err != nil {
		c.log.Error().Err(err).Msg("failed to write to serial port")
	}
}
