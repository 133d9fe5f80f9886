package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

const boardFile = `
log_dir = "/tmp/autotest-logs"
suite = "suites/smoke.toml"

[serial]
serial_file = "/dev/ttyUSB0"
baud_rate = 1500000
read_timeout = "500ms"
password = "bianbu"
login_prompts = ["login:", "Username:"]
shell_prompt = "root@k1:~#"
stdout_log = true
login_timeout = 120
usb_reset = true

[mux]
device_serial = "sd-wire_11"
tick_time = 3500

[flash]
device = "/dev/sdb"
dd_params = ["bs=4M", "status=progress"]

[[images]]
name = "Bianbu"
url = "https://example.invalid/bianbu.img"

[[images]]
name = "Debian/RevyOS"
url = "https://example.invalid/revyos.img"
`

func TestParseBoard(t *testing.T) {
	got, err := Parse(boardFile)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	want := &Board{
		LogDir:   "/tmp/autotest-logs",
		Suite:    "suites/smoke.toml",
		JudgeDir: "./tests",
		Serial: Serial{
			File:            "/dev/ttyUSB0",
			BaudRate:        1500000,
			ReadTimeout:     500 * time.Millisecond,
			AutoLogin:       true,
			Username:        "root",
			Password:        "bianbu",
			LoginPrompts:    []string{"login:", "Username:"},
			PasswordPrompts: []string{"Password:"},
			ShellPrompt:     "root@k1:~#",
			StdoutLog:       true,
			LoginTimeout:    2 * time.Minute,
			USBReset:        true,
		},
		Mux: Mux{DeviceSerial: "sd-wire_11", Sudo: true, TickTime: 3500 * time.Millisecond},
		Flash: Flash{
			Device:   "/dev/sdb",
			ImageDir: "./images",
			DDParams: []string{"bs=4M", "status=progress"},
			Sudo:     true,
		},
		Images: []Image{
			{Name: "Bianbu", URL: "https://example.invalid/bianbu.img"},
			{Name: "Debian/RevyOS", URL: "https://example.invalid/revyos.img"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	b, err := Parse(`[serial]
serial_file = "/dev/ttyUSB0"
shell_prompt = "# "
`)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	s := b.Session()
	if s.BaudRate != 115200 || s.ReadTimeout != time.Second || !s.AutoLogin || s.Username != "root" {
		t.Errorf("unexpected serial defaults: %+v", s)
	}
	if s.LoginTimeout != 5*time.Minute {
		t.Errorf("LoginTimeout = %v, expected 5m", s.LoginTimeout)
	}
	if s.LogDir != "./logs" {
		t.Errorf("LogDir = %q, expected ./logs", s.LogDir)
	}
	if b.Mux.TickTime != 2*time.Second || !b.Mux.Sudo {
		t.Errorf("unexpected mux defaults: %+v", b.Mux)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Session().Validate() failed: %v", err)
	}
}

func TestParseLegacyKeys(t *testing.T) {
	b, err := Parse(`
log_dir = "./logs"
[env]
[serial]
serial_file = "/dev/ttyUSB0"
bund_rate   = 9600
timeout = 2
`)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if b.Serial.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, expected 9600 from bund_rate", b.Serial.BaudRate)
	}
	if b.Serial.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v, expected 2s from timeout", b.Serial.ReadTimeout)
	}
}

func TestParseNewKeyWinsOverLegacy(t *testing.T) {
	b, err := Parse(`[serial]
bund_rate = 9600
baud_rate = 57600
`)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if b.Serial.BaudRate != 57600 {
		t.Errorf("BaudRate = %d, expected 57600", b.Serial.BaudRate)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AUTOTEST_SERIAL_PASSWORD", "from-env")
	t.Setenv("AUTOTEST_SERIAL_BAUD_RATE", "230400")

	b, err := Parse(boardFile)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if b.Serial.Password != "from-env" {
		t.Errorf("Password = %q, expected env override", b.Serial.Password)
	}
	if b.Serial.BaudRate != 230400 {
		t.Errorf("BaudRate = %d, expected env override", b.Serial.BaudRate)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad toml", "[serial"},
		{"bad read timeout", "[serial]\nread_timeout = \"soon\""},
		{"negative login timeout", "[serial]\nlogin_timeout = -1"},
		{"bad baud", "[serial]\nbaud_rate = \"fast\""},
		{"image without name", "[[images]]\nurl = \"http://x\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); !errors.Is(err, ErrInvalidBoard) {
				t.Errorf("Expected ErrInvalidBoard, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.toml")
	if err := os.WriteFile(path, []byte(boardFile), 0644); err != nil {
		t.Fatalf("Failed to write board file: %v", err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if img, ok := b.Image("Debian/RevyOS"); !ok || img.URL != "https://example.invalid/revyos.img" {
		t.Errorf("Image() = %+v, %v", img, ok)
	}
	if _, ok := b.Image("Fedora"); ok {
		t.Error("Image() found an image that is not configured")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing board file")
	}

	empty, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if empty.Serial.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, expected default", empty.Serial.BaudRate)
	}
}

func TestLoadFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.toml")
	legacy := "[serial]\nserial_file = \"/dev/ttyUSB0\"\nbund_rate = 9600\n"
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("Failed to write board file: %v", err)
	}

	newFlags := func() *pflag.FlagSet {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("device", "", "")
		fs.Int("baud", 0, "")
		fs.String("log-dir", "", "")
		return fs
	}

	fs := newFlags()
	b, err := LoadFlags(path, fs)
	if err != nil {
		t.Fatalf("LoadFlags() failed: %v", err)
	}
	if b.Serial.File != "/dev/ttyUSB0" || b.Serial.BaudRate != 9600 || b.LogDir != "./logs" {
		t.Errorf("unset flags changed the board: %+v", b)
	}

	fs = newFlags()
	if err := fs.Parse([]string{"--device", "/dev/ttyACM1", "--baud", "1500000", "--log-dir", "/tmp/l"}); err != nil {
		t.Fatal(err)
	}
	b, err = LoadFlags(path, fs)
	if err != nil {
		t.Fatalf("LoadFlags() failed: %v", err)
	}
	if b.Serial.File != "/dev/ttyACM1" {
		t.Errorf("File = %q, expected flag value", b.Serial.File)
	}
	if b.Serial.BaudRate != 1500000 {
		t.Errorf("BaudRate = %d, flag must win over legacy bund_rate", b.Serial.BaudRate)
	}
	if b.LogDir != "/tmp/l" {
		t.Errorf("LogDir = %q", b.LogDir)
	}
}
