package console

import (
	"testing"
	"time"
)

func TestLoginTransitions(t *testing.T) {
	t0 := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		lines     []string
		wantState LoginState
		wantSent  Credential
		wantLast  Action
	}{
		{
			name:      "login prompt sends username",
			lines:     []string{"k1 login: "},
			wantState: CredentialSent,
			wantSent:  CredentialUsername,
			wantLast:  ActionSendUsername,
		},
		{
			name:      "password prompt sends password",
			lines:     []string{"k1 login: ", "Password: "},
			wantState: CredentialSent,
			wantSent:  CredentialPassword,
			wantLast:  ActionSendPassword,
		},
		{
			name:      "shell prompt logs in",
			lines:     []string{"k1 login: ", "Password: ", "root@k1:~# "},
			wantState: LoggedIn,
			wantLast:  ActionLoggedIn,
		},
		{
			name:      "shell prompt wins over login prompt on same line",
			lines:     []string{"login: root@k1:~# "},
			wantState: LoggedIn,
			wantLast:  ActionLoggedIn,
		},
		{
			name:      "logged in is sticky",
			lines:     []string{"root@k1:~# ", "k1 login: ", "Password: "},
			wantState: LoggedIn,
			wantLast:  ActionNone,
		},
		{
			name:      "boot noise is ignored",
			lines:     []string{"[    0.000000] Booting Linux\n"},
			wantState: AwaitingPrompt,
			wantLast:  ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogin(testSession(), t0)
			var last Action
			for _, line := range tt.lines {
				last = l.OnLine(line, t0)
			}
			state, sent := l.State()
			if state != tt.wantState {
				t.Errorf("state = %v, expected %v", state, tt.wantState)
			}
			if sent != tt.wantSent {
				t.Errorf("sent = %v, expected %v", sent, tt.wantSent)
			}
			if last != tt.wantLast {
				t.Errorf("last action = %v, expected %v", last, tt.wantLast)
			}
		})
	}
}

func TestLoginDoneClosesOnce(t *testing.T) {
	t0 := time.Now()
	l := NewLogin(testSession(), t0)

	select {
	case <-l.Done():
		t.Fatal("Done closed before login")
	default:
	}

	l.OnLine("root@k1:~# ", t0)
	l.OnLine("root@k1:~# ", t0)

	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed after shell prompt")
	}
}

func TestLoginIdleProvocation(t *testing.T) {
	s := testSession()
	s.IdleProvocation = 5 * time.Second
	t0 := time.Unix(1700000000, 0)
	l := NewLogin(s, t0)

	if a := l.OnIdle(t0.Add(4 * time.Second)); a != ActionNone {
		t.Errorf("OnIdle before interval = %v, expected ActionNone", a)
	}
	if a := l.OnIdle(t0.Add(5 * time.Second)); a != ActionSendUsername {
		t.Errorf("OnIdle at interval = %v, expected ActionSendUsername", a)
	}
	// the provocation restarts the clock and leaves the state alone
	if a := l.OnIdle(t0.Add(6 * time.Second)); a != ActionNone {
		t.Errorf("OnIdle right after provocation = %v, expected ActionNone", a)
	}
	if state, _ := l.State(); state != AwaitingPrompt {
		t.Errorf("state = %v, expected AwaitingPrompt", state)
	}
	if a := l.OnIdle(t0.Add(10 * time.Second)); a != ActionSendUsername {
		t.Errorf("second provocation = %v, expected ActionSendUsername", a)
	}

	// received bytes also restart the clock
	l.OnLine("U-Boot 2022.10\n", t0.Add(12*time.Second))
	if a := l.OnIdle(t0.Add(16 * time.Second)); a != ActionNone {
		t.Errorf("OnIdle after rx = %v, expected ActionNone", a)
	}
}

func TestLoginTouchRestartsIdleClock(t *testing.T) {
	s := testSession()
	s.IdleProvocation = time.Second
	t0 := time.Unix(1700000000, 0)
	l := NewLogin(s, t0)

	// bytes without a newline keep the clock fresh
	for i := 1; i <= 5; i++ {
		l.Touch(t0.Add(time.Duration(i) * 500 * time.Millisecond))
	}
	if a := l.OnIdle(t0.Add(3 * time.Second)); a != ActionNone {
		t.Errorf("OnIdle after Touch = %v, expected ActionNone", a)
	}
	if a := l.OnIdle(t0.Add(3500 * time.Millisecond)); a != ActionSendUsername {
		t.Errorf("OnIdle after quiet interval = %v, expected ActionSendUsername", a)
	}
}

func TestLoginIdleOnlyWhileAwaitingPrompt(t *testing.T) {
	s := testSession()
	s.IdleProvocation = time.Second
	t0 := time.Unix(1700000000, 0)

	l := NewLogin(s, t0)
	l.OnLine("k1 login: ", t0)
	if a := l.OnIdle(t0.Add(time.Minute)); a != ActionNone {
		t.Errorf("OnIdle in CredentialSent = %v, expected ActionNone", a)
	}

	l.OnLine("root@k1:~# ", t0)
	if a := l.OnIdle(t0.Add(time.Hour)); a != ActionNone {
		t.Errorf("OnIdle in LoggedIn = %v, expected ActionNone", a)
	}
}

func TestLoginIdleDisabled(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	l := NewLogin(testSession(), t0)
	if a := l.OnIdle(t0.Add(time.Hour)); a != ActionNone {
		t.Errorf("OnIdle with provocation disabled = %v, expected ActionNone", a)
	}
}
