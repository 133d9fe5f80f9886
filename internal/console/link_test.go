package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	serial "github.com/allbin/go-serial-autotest"
)

func openLink(t *testing.T, o *fakeOpener) *Link {
	t.Helper()
	l := newLink(o.open, 20*time.Millisecond, 20*time.Millisecond, zerolog.Nop())
	if err := l.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLinkWritesDoNotInterleave(t *testing.T) {
	o := &fakeOpener{next: func() *fakePort {
		p := newFakePort()
		p.chunk = 1
		return p
	}}
	l := openLink(t, o)

	var wg sync.WaitGroup
	for _, letter := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			if err := l.WriteLine(strings.Repeat(s, 64)); err != nil {
				t.Errorf("WriteLine() failed: %v", err)
			}
		}(letter)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(o.port().written(), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, expected 8", len(lines))
	}
	for _, line := range lines {
		if line != strings.Repeat(line[:1], 64) {
			t.Errorf("interleaved write: %q", line)
		}
	}
}

func readUntil(t *testing.T, l *Link) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		line, _, _, err := l.readLine()
		if err != nil {
			t.Fatalf("readLine() failed: %v", err)
		}
		if line != "" {
			return line
		}
	}
	t.Fatal("no line before deadline")
	return ""
}

func TestLinkReadLine(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)
	p := o.port()

	p.feed("U-Boot 2022.10\r\nStarting kernel ...\r\nk1 login: ")

	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, readUntil(t, l))
	}
	want := []string{"U-Boot 2022.10\r\n", "Starting kernel ...\r\n", "k1 login: "}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLinkPartialLineWaitsForQuiet(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)
	o.port().feed("Password: ")

	start := time.Now()
	line := readUntil(t, l)
	if line != "Password: " {
		t.Errorf("line = %q", line)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("partial line delivered after %v, expected at least the read timeout", elapsed)
	}
}

func TestLinkReadLineReportsBytes(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)

	line, rx, _, err := l.readLine()
	if err != nil || line != "" || rx {
		t.Errorf("quiet line: readLine() = %q, %v, %v", line, rx, err)
	}

	o.port().feed("\rA start job is running")
	line, rx, _, err = l.readLine()
	if err != nil {
		t.Fatalf("readLine() failed: %v", err)
	}
	if line != "" {
		t.Errorf("line = %q, expected partial line held back", line)
	}
	if !rx {
		t.Error("rx = false, expected bytes reported")
	}
}

func TestLinkNotOpen(t *testing.T) {
	o := &fakeOpener{}
	l := newLink(o.open, time.Second, time.Second, zerolog.Nop())

	err := l.WriteLine("ls")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, serial.ErrPortClosed) {
		t.Errorf("expected ErrTransport wrapping ErrPortClosed, got %v", err)
	}
	if _, _, _, err := l.readLine(); !errors.Is(err, ErrTransport) {
		t.Errorf("readLine(): expected ErrTransport, got %v", err)
	}
	if l.State() != StateClosed {
		t.Errorf("State() = %v, expected %v", l.State(), StateClosed)
	}
}

func TestLinkOpenFailure(t *testing.T) {
	o := &fakeOpener{err: serial.ErrDeviceNotFound}
	l := newLink(o.open, time.Second, time.Second, zerolog.Nop())

	err := l.Open()
	if !errors.Is(err, ErrTransport) || !errors.Is(err, serial.ErrDeviceNotFound) {
		t.Errorf("expected ErrTransport wrapping ErrDeviceNotFound, got %v", err)
	}
}

func TestLinkCloseIsFinal(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)

	if err := l.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if err := l.Open(); !errors.Is(err, ErrStopped) {
		t.Errorf("Open() after Close: expected ErrStopped, got %v", err)
	}
	if err := l.Reopen(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Reopen() after Close: expected ErrStopped, got %v", err)
	}
}

func TestLinkConcurrentReopenIsSingleFlight(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)

	gate := make(chan struct{})
	o.mu.Lock()
	o.gate = gate
	o.mu.Unlock()

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- l.Reopen(context.Background()) }()
	}

	waitFor(t, "reopen attempt", func() bool { return o.count() == 2 })
	if l.State() != StateReopening {
		t.Errorf("State() = %v, expected %v", l.State(), StateReopening)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Reopen() failed: %v", err)
		}
	}
	if n := o.count(); n != 2 {
		t.Errorf("opener called %d times, expected 2", n)
	}
	if l.State() != StateOpen {
		t.Errorf("State() = %v, expected %v", l.State(), StateOpen)
	}
}

func TestLinkReopenEscalatesToUSBReset(t *testing.T) {
	o := &fakeOpener{}
	l := openLink(t, o)

	o.mu.Lock()
	o.err = serial.ErrDeviceNotFound
	o.mu.Unlock()

	var resets atomic.Int32
	l.escalateAfter = 2
	l.escalate = func() error {
		resets.Add(1)
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := l.Reopen(context.Background()); err == nil {
			t.Fatalf("Reopen() #%d unexpectedly succeeded", i)
		}
	}
	if n := resets.Load(); n != 1 {
		t.Errorf("USB reset ran %d times, expected 1", n)
	}

	o.mu.Lock()
	o.err = nil
	o.mu.Unlock()
	if err := l.Reopen(context.Background()); err != nil {
		t.Fatalf("Reopen() after device returned failed: %v", err)
	}
	if n := l.failures.Load(); n != 0 {
		t.Errorf("failures = %d after success, expected 0", n)
	}
}

func TestLinkReopenCanceled(t *testing.T) {
	o := &fakeOpener{}
	l := newLink(o.open, time.Second, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Reopen(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
