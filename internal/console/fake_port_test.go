package console

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	serial "github.com/allbin/go-serial-autotest"
)

// fakePort is an in-memory serial line. Bytes fed with feed are returned by
// Read; every Write is appended to the raw stream and handed to onWrite.
type fakePort struct {
	mu      sync.Mutex
	in      []byte
	stream  []byte
	closed  bool
	readErr error
	chunk   int
	onWrite func(p *fakePort, data string)
	flushes int
}

func newFakePort() *fakePort { return &fakePort{} }

func (p *fakePort) feed(s string) {
	p.mu.Lock()
	p.in = append(p.in, s...)
	p.mu.Unlock()
}

func (p *fakePort) failNextRead(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.stream)
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, serial.ErrPortClosed
	}
	if err := p.readErr; err != nil {
		p.readErr = nil
		p.mu.Unlock()
		return 0, err
	}
	if len(p.in) == 0 {
		p.mu.Unlock()
		// stands in for the VTIME wait of a real tty
		time.Sleep(2 * time.Millisecond)
		return 0, nil
	}
	n := copy(buf, p.in)
	p.in = p.in[n:]
	p.mu.Unlock()
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, serial.ErrPortClosed
	}
	n := len(data)
	if p.chunk > 0 && n > p.chunk {
		n = p.chunk
	}
	p.stream = append(p.stream, data[:n]...)
	cb := p.onWrite
	p.mu.Unlock()

	if cb != nil {
		cb(p, string(data[:n]))
	}
	return n, nil
}

func (p *fakePort) FlushInput() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in = nil
	p.flushes++
	return nil
}

func (p *fakePort) FlushOutput() error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return serial.ErrPortClosed
	}
	p.closed = true
	return nil
}

// fakeOpener counts opens and builds each port with next, or fails with err.
// A non-nil gate holds every open until it is closed.
type fakeOpener struct {
	mu    sync.Mutex
	opens int
	err   error
	next  func() *fakePort
	gate  chan struct{}
	last  *fakePort
}

func (o *fakeOpener) open() (Port, error) {
	o.mu.Lock()
	o.opens++
	gate, err := o.gate, o.err
	o.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	p := newFakePort()
	if o.next != nil {
		p = o.next()
	}
	o.last = p
	return p, nil
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

func (o *fakeOpener) port() *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// respondTo makes p answer a command with a canned echo, body and prompt.
func respondTo(command, body, prompt string) func(p *fakePort, data string) {
	return func(p *fakePort, data string) {
		if strings.TrimRight(data, "\n") == command {
			p.feed(command + "\r\n" + body + prompt)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errUnplugged = errors.New("device unplugged")

func testSession() Session {
	s := DefaultSession()
	s.SerialFile = "/dev/ttyFAKE0"
	s.ShellPrompt = "root@k1:~#"
	s.Password = "bianbu"
	s.ReadTimeout = 20 * time.Millisecond
	s.LoginTimeout = 2 * time.Second
	s.IdleProvocation = 0
	s.ReopenBackoff = 10 * time.Millisecond
	return s
}
