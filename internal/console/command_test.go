package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestTranscript(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		patterns []string
		lines    []string
		want     string
		done     bool
		matched  string
	}{
		{
			name:    "echo and prompt are cut",
			command: "ls",
			lines:   []string{"ls\r\n", "file1 file2\r\n", "root@k1:~# "},
			want:    "file1 file2",
			done:    true,
		},
		{
			name:    "multi line output keeps inner newlines",
			command: "cat /etc/hostname /etc/issue",
			lines:   []string{"cat /etc/hostname /etc/issue\r\n", "k1\r\n", "Bianbu 2.0\r\n", "root@k1:~# "},
			want:    "k1\nBianbu 2.0",
			done:    true,
		},
		{
			name:    "output before prompt on the same line",
			command: "printf done",
			lines:   []string{"printf done\r\n", "doneroot@k1:~# "},
			want:    "done",
			done:    true,
		},
		{
			name:    "no prompt yet",
			command: "sleep 100",
			lines:   []string{"sleep 100\r\n"},
			want:    "",
			done:    false,
		},
		{
			name:    "only the echo is cut",
			command: "echo",
			lines:   []string{"echo\r\n", "\r\n", "echo\r\n", "root@k1:~# "},
			want:    "\necho",
			done:    true,
		},
		{
			name:     "text before the prompt is not matched",
			command:  "printf done",
			patterns: []string{"done"},
			lines:    []string{"printf done\r\n", "doneroot@k1:~# "},
			want:     "done",
			done:     true,
		},
		{
			name:     "first matching pattern is recorded",
			command:  "./selftest",
			patterns: []string{"FAIL", "PASS", "all"},
			lines:    []string{"./selftest\r\n", "PASS: all good\r\n", "root@k1:~# "},
			want:     "PASS: all good",
			done:     true,
			matched:  "PASS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTranscript(tt.command, "root@k1:~#", tt.patterns)
			var done bool
			for _, line := range tt.lines {
				done = tr.add(line)
			}
			if done != tt.done {
				t.Errorf("done = %v, expected %v", done, tt.done)
			}
			if got := tr.String(); got != tt.want {
				t.Errorf("output = %q, expected %q", got, tt.want)
			}
			if tr.pattern != tt.matched {
				t.Errorf("pattern = %q, expected %q", tr.pattern, tt.matched)
			}
		})
	}
}

func startedConsole(t *testing.T, o *fakeOpener) *Console {
	t.Helper()
	s := testSession()
	s.AutoLogin = false

	c, err := New(s, o.open)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { c.Stop() })
	return c
}

var ignoreDuration = cmpopts.IgnoreFields(Result{}, "Duration")

func TestRunCollectsOutput(t *testing.T) {
	o := &fakeOpener{next: func() *fakePort {
		p := newFakePort()
		p.onWrite = respondTo("ls", "file1 file2\r\n", "root@k1:~# ")
		return p
	}}
	c := startedConsole(t, o)

	want := Result{Command: "ls", Output: "file1 file2", Status: StatusCompleted}

	// a second identical run must behave the same
	for i := 0; i < 2; i++ {
		res, err := c.Run(context.Background(), Invocation{Command: "ls", Timeout: time.Second})
		if err != nil {
			t.Fatalf("Run() #%d failed: %v", i, err)
		}
		if diff := cmp.Diff(want, res, ignoreDuration); diff != "" {
			t.Errorf("Run() #%d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRunMatchesPatterns(t *testing.T) {
	o := &fakeOpener{next: func() *fakePort {
		p := newFakePort()
		p.onWrite = respondTo("./selftest", "PASS: all good\r\n", "root@k1:~# ")
		return p
	}}
	c := startedConsole(t, o)

	res, err := c.Run(context.Background(), Invocation{
		Command:  "./selftest",
		Timeout:  time.Second,
		Patterns: []string{"FAIL", "PASS"},
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !res.Matched || res.Pattern != "PASS" {
		t.Errorf("Matched = %v, Pattern = %q, expected PASS", res.Matched, res.Pattern)
	}
}

func TestRunTimeoutKeepsPartialOutput(t *testing.T) {
	o := &fakeOpener{next: func() *fakePort {
		p := newFakePort()
		p.onWrite = respondTo("dmesg -w", "[ 1.0] usb 1-1: new device\r\n", "")
		return p
	}}
	c := startedConsole(t, o)

	res, err := c.Run(context.Background(), Invocation{Command: "dmesg -w", Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Errorf("Status = %v, expected %v", res.Status, StatusTimedOut)
	}
	if res.Output != "[ 1.0] usb 1-1: new device" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRunTimeoutNeverMatches(t *testing.T) {
	o := &fakeOpener{next: func() *fakePort {
		p := newFakePort()
		p.onWrite = respondTo("dmesg -w", "usb 1-1: new device\r\n", "")
		return p
	}}
	c := startedConsole(t, o)

	res, err := c.Run(context.Background(), Invocation{
		Command:  "dmesg -w",
		Timeout:  100 * time.Millisecond,
		Patterns: []string{"usb"},
	})
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Errorf("Status = %v, expected %v", res.Status, StatusTimedOut)
	}
	if res.Matched || res.Pattern != "" {
		t.Errorf("Matched = %v, Pattern = %q, expected no match on timeout", res.Matched, res.Pattern)
	}
	if res.Output != "usb 1-1: new device" {
		t.Errorf("Output = %q, expected the partial output", res.Output)
	}
}

func TestRunTransportErrorThenRecovers(t *testing.T) {
	fail := true
	o := &fakeOpener{}
	o.next = func() *fakePort {
		p := newFakePort()
		if fail {
			fail = false
			p.onWrite = func(p *fakePort, data string) { p.failNextRead(errUnplugged) }
			return p
		}
		p.onWrite = respondTo("uname", "Linux\r\n", "root@k1:~# ")
		return p
	}
	c := startedConsole(t, o)

	res, err := c.Run(context.Background(), Invocation{Command: "uname", Timeout: time.Second})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, errUnplugged) {
		t.Fatalf("expected ErrTransport wrapping the read error, got %v", err)
	}
	if res.Status != StatusTransportError {
		t.Errorf("Status = %v, expected %v", res.Status, StatusTransportError)
	}

	waitFor(t, "reopen", func() bool { return o.count() == 2 && c.ConnState() == StateOpen })

	res, err = c.Run(context.Background(), Invocation{Command: "uname", Timeout: time.Second})
	if err != nil {
		t.Fatalf("Run() after recovery failed: %v", err)
	}
	if res.Output != "Linux" {
		t.Errorf("Output = %q, expected %q", res.Output, "Linux")
	}
}

func TestRunReleasedByStop(t *testing.T) {
	o := &fakeOpener{}
	c := startedConsole(t, o)

	go func() {
		time.Sleep(30 * time.Millisecond)
		c.Stop()
	}()

	res, err := c.Run(context.Background(), Invocation{Command: "sleep 100", Timeout: 10 * time.Second})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if res.Status != StatusStopped {
		t.Errorf("Status = %v, expected %v", res.Status, StatusStopped)
	}

	if _, err := c.Run(context.Background(), Invocation{Command: "ls"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Run() after Stop: expected ErrStopped, got %v", err)
	}
}

func TestRunBeforeStart(t *testing.T) {
	o := &fakeOpener{}
	c, err := New(testSession(), o.open)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := c.Run(context.Background(), Invocation{Command: "ls"}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusCompleted:      "completed",
		StatusTimedOut:       "timed_out",
		StatusTransportError: "transport_error",
		StatusStopped:        "stopped",
		Status(42):           "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, expected %q", s, got, want)
		}
	}
}
