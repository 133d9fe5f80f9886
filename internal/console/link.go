package console

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	serial "github.com/allbin/go-serial-autotest"
)

// Port is the part of serial.Port the console drives.
type Port interface {
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	FlushInput() error
	FlushOutput() error
	Close() error
}

// Opener opens a fresh Port. It is called once at start and again on
// every recovery attempt.
type Opener func() (Port, error)

// ConnState is the link's connection state.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateOpen
	StateReopening
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReopening:
		return "reopening"
	default:
		return "closed"
	}
}

// Link owns the serial port. Its mutex is the one guard every write, every
// line read and every change of the command route goes through, so the
// login responder and the command sender can never interleave on the wire.
type Link struct {
	open        Opener
	log         zerolog.Logger
	readTimeout time.Duration
	backoff     time.Duration

	mu      sync.Mutex
	port    Port
	buf     []byte
	pending []byte
	lastRx  time.Time
	route   *route
	shut    bool

	state    atomic.Int32
	flight   singleflight.Group
	failures atomic.Int32

	escalate      func() error
	escalateAfter int32
}

func newLink(open Opener, readTimeout, backoff time.Duration, log zerolog.Logger) *Link {
	return &Link{
		open:        open,
		log:         log,
		readTimeout: readTimeout,
		backoff:     backoff,
		buf:         make([]byte, 4096),
	}
}

// State reports the current connection state.
func (l *Link) State() ConnState {
	return ConnState(l.state.Load())
}

// Open opens the port unless it already is.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openLocked()
}

func (l *Link) openLocked() error {
	if l.shut {
		return ErrStopped
	}
	if l.port != nil {
		return nil
	}

	p, err := l.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := p.FlushInput(); err != nil {
		p.Close()
		return fmt.Errorf("%w: flush input: %w", ErrTransport, err)
	}
	if err := p.FlushOutput(); err != nil {
		p.Close()
		return fmt.Errorf("%w: flush output: %w", ErrTransport, err)
	}

	l.port = p
	l.pending = l.pending[:0]
	l.state.Store(int32(StateOpen))
	l.log.Info().Msg("opened serial port")
	return nil
}

// Close shuts the link for good. Calling it again is a no-op.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shut = true
	err := l.closeLocked()
	l.state.Store(int32(StateClosed))
	return err
}

func (l *Link) closeLocked() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	l.pending = l.pending[:0]
	return err
}

// WriteLine sends s followed by a newline as one uninterrupted write.
func (l *Link) WriteLine(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeLocked(s + "\n")
}

func (l *Link) writeLocked(s string) error {
	if l.port == nil {
		return fmt.Errorf("%w: %w", ErrTransport, serial.ErrPortClosed)
	}
	data := []byte(s)
	for len(data) > 0 {
		n, err := l.port.Write(data)
		if err != nil {
			return fmt.Errorf("%w: write: %w", ErrTransport, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: write: %w", ErrTransport, io.ErrShortWrite)
		}
		data = data[n:]
	}
	return nil
}

// readLine does one bounded read under the guard. It returns the next
// complete line (terminator included), or the buffered partial line once
// readTimeout has passed without new bytes; "" means nothing is ready.
// rx reports whether this call received any bytes from the port.
// The route is the command sink that was attached when the line was taken.
func (l *Link) readLine() (line string, rx bool, r *route, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r = l.route
	if line, ok := l.takeLine(); ok {
		return line, false, r, nil
	}
	if l.port == nil {
		return "", false, r, fmt.Errorf("%w: %w", ErrTransport, serial.ErrPortClosed)
	}

	n, err := l.port.Read(l.buf)
	if err != nil {
		return "", false, r, fmt.Errorf("%w: read: %w", ErrTransport, err)
	}
	now := time.Now()
	rx = n > 0
	if rx {
		l.pending = append(l.pending, l.buf[:n]...)
		l.lastRx = now
	}
	if line, ok := l.takeLine(); ok {
		return line, rx, r, nil
	}
	// Prompts such as "login: " never end in a newline
	if len(l.pending) > 0 && now.Sub(l.lastRx) >= l.readTimeout {
		line := string(l.pending)
		l.pending = l.pending[:0]
		return line, rx, r, nil
	}
	return "", rx, r, nil
}

func (l *Link) takeLine() (string, bool) {
	i := bytes.IndexByte(l.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := string(l.pending[:i+1])
	l.pending = append(l.pending[:0], l.pending[i+1:]...)
	return line, true
}

// attach discards stale input, points subsequent lines at r and sends the
// command, all within one hold of the guard.
func (l *Link) attach(r *route, command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return fmt.Errorf("%w: %w", ErrTransport, serial.ErrPortClosed)
	}
	if err := l.port.FlushInput(); err != nil {
		return fmt.Errorf("%w: flush input: %w", ErrTransport, err)
	}
	l.pending = l.pending[:0]
	l.route = r
	if err := l.writeLocked(command + "\n"); err != nil {
		l.route = nil
		return err
	}
	return nil
}

func (l *Link) detach(r *route) {
	l.mu.Lock()
	if l.route == r {
		l.route = nil
	}
	l.mu.Unlock()
	r.close()
}

// route carries lines from the reader to the one command in flight.
type route struct {
	lines chan string
	errs  chan error
	done  chan struct{}
	once  sync.Once
}

func newRoute() *route {
	return &route{
		lines: make(chan string, 64),
		errs:  make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (r *route) deliver(line string) {
	select {
	case r.lines <- line:
	case <-r.done:
	}
}

func (r *route) fail(err error) {
	select {
	case r.errs <- err:
	default:
	}
}

func (r *route) close() {
	r.once.Do(func() { close(r.done) })
}
