// Package config loads the board file: which serial line to drive, how to
// log in, how to provision the board and which images to test.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/allbin/go-serial-autotest/internal/console"
)

// EnvPrefix prefixes environment overrides, e.g. AUTOTEST_SERIAL_PASSWORD.
const EnvPrefix = "AUTOTEST"

var ErrInvalidBoard = errors.New("invalid board configuration")

type Serial struct {
	File            string
	BaudRate        int
	ReadTimeout     time.Duration
	AutoLogin       bool
	Username        string
	Password        string
	LoginPrompts    []string
	PasswordPrompts []string
	ShellPrompt     string
	StdoutLog       bool
	LoginTimeout    time.Duration
	USBReset        bool
}

type Mux struct {
	DeviceSerial string
	Sudo         bool
	TickTime     time.Duration
}

type Flash struct {
	Device   string
	ImageDir string
	DDParams []string
	Sudo     bool
}

type Image struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Board is one board file, resolved against defaults and environment.
type Board struct {
	LogDir   string
	Suite    string
	JudgeDir string
	Serial   Serial
	Mux      Mux
	Flash    Flash
	Images   []Image
}

// legacy key names still accepted in board files
var legacyKeys = map[string]string{
	"serial.baud_rate":    "serial.bund_rate",
	"serial.read_timeout": "serial.timeout",
}

// New returns a viper instance with every default registered.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_dir", "./logs")
	v.SetDefault("judge_dir", "./tests")

	v.SetDefault("serial.baud_rate", console.DefaultBaudRate)
	v.SetDefault("serial.read_timeout", console.DefaultReadTimeout)
	v.SetDefault("serial.auto_login", true)
	v.SetDefault("serial.username", console.DefaultUsername)
	v.SetDefault("serial.login_prompts", []string{"login:"})
	v.SetDefault("serial.password_prompts", []string{"Password:"})
	v.SetDefault("serial.stdout_log", false)
	v.SetDefault("serial.login_timeout", console.DefaultLoginTimeout)
	v.SetDefault("serial.usb_reset", false)

	v.SetDefault("mux.sudo", true)
	v.SetDefault("mux.tick_time", 2000)

	v.SetDefault("flash.image_dir", "./images")
	v.SetDefault("flash.sudo", true)
	return v
}

// Load reads the board file at path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Board, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read board file: %w", err)
		}
	}
	return FromViper(v)
}

// flagKeys maps command-line flags onto board keys.
var flagKeys = map[string]string{
	"device":  "serial.serial_file",
	"baud":    "serial.baud_rate",
	"log-dir": "log_dir",
	"suite":   "suite",
}

// LoadFlags is Load with any of the known flags present in flags bound
// over the file and environment.
func LoadFlags(path string, flags *pflag.FlagSet) (*Board, error) {
	v := New()
	changed := map[string]bool{}
	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
			changed[key] = f.Changed
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read board file: %w", err)
		}
	}
	return fromViper(v, changed)
}

// Parse reads a board file from memory.
func Parse(data string) (*Board, error) {
	v := New()
	if err := v.ReadConfig(strings.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBoard, err)
	}
	return FromViper(v)
}

// FromViper resolves a Board from v.
func FromViper(v *viper.Viper) (*Board, error) {
	return fromViper(v, nil)
}

func fromViper(v *viper.Viper, flagged map[string]bool) (*Board, error) {
	// legacy spellings apply only when nothing newer names the key
	get := func(key string) any {
		legacy, ok := legacyKeys[key]
		if ok && !flagged[key] && !inEnv(key) && !v.InConfig(key) && v.InConfig(legacy) {
			return v.Get(legacy)
		}
		return v.Get(key)
	}

	readTimeout, err := duration(get("serial.read_timeout"), time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: serial.read_timeout: %w", ErrInvalidBoard, err)
	}
	loginTimeout, err := duration(v.Get("serial.login_timeout"), time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: serial.login_timeout: %w", ErrInvalidBoard, err)
	}
	tickTime, err := duration(v.Get("mux.tick_time"), time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: mux.tick_time: %w", ErrInvalidBoard, err)
	}
	baud, err := strconv.Atoi(fmt.Sprint(get("serial.baud_rate")))
	if err != nil {
		return nil, fmt.Errorf("%w: serial.baud_rate: %w", ErrInvalidBoard, err)
	}

	b := &Board{
		LogDir:   v.GetString("log_dir"),
		Suite:    v.GetString("suite"),
		JudgeDir: v.GetString("judge_dir"),
		Serial: Serial{
			File:            v.GetString("serial.serial_file"),
			BaudRate:        baud,
			ReadTimeout:     readTimeout,
			AutoLogin:       v.GetBool("serial.auto_login"),
			Username:        v.GetString("serial.username"),
			Password:        v.GetString("serial.password"),
			LoginPrompts:    v.GetStringSlice("serial.login_prompts"),
			PasswordPrompts: v.GetStringSlice("serial.password_prompts"),
			ShellPrompt:     v.GetString("serial.shell_prompt"),
			StdoutLog:       v.GetBool("serial.stdout_log"),
			LoginTimeout:    loginTimeout,
			USBReset:        v.GetBool("serial.usb_reset"),
		},
		Mux: Mux{
			DeviceSerial: v.GetString("mux.device_serial"),
			Sudo:         v.GetBool("mux.sudo"),
			TickTime:     tickTime,
		},
		Flash: Flash{
			Device:   v.GetString("flash.device"),
			ImageDir: v.GetString("flash.image_dir"),
			DDParams: v.GetStringSlice("flash.dd_params"),
			Sudo:     v.GetBool("flash.sudo"),
		},
	}
	if err := v.UnmarshalKey("images", &b.Images); err != nil {
		return nil, fmt.Errorf("%w: images: %w", ErrInvalidBoard, err)
	}
	for i, img := range b.Images {
		if img.Name == "" {
			return nil, fmt.Errorf("%w: images[%d] has no name", ErrInvalidBoard, i)
		}
	}
	return b, nil
}

// inEnv reports whether key is overridden from the environment.
func inEnv(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

// duration turns a bare number into unit multiples and a string into
// either a number or a Go duration.
func duration(val any, unit time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := val.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		d = t
	case int:
		d = time.Duration(t) * unit
	case int64:
		d = time.Duration(t) * unit
	case float64:
		d = time.Duration(t * float64(unit))
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			d = time.Duration(f * float64(unit))
			break
		}
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", val, val)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}

// Session builds the console session for this board.
func (b *Board) Session() console.Session {
	s := console.DefaultSession()
	s.SerialFile = b.Serial.File
	s.BaudRate = b.Serial.BaudRate
	s.ReadTimeout = b.Serial.ReadTimeout
	s.AutoLogin = b.Serial.AutoLogin
	s.Username = b.Serial.Username
	s.Password = b.Serial.Password
	s.LoginPrompts = b.Serial.LoginPrompts
	s.PasswordPrompts = b.Serial.PasswordPrompts
	s.ShellPrompt = b.Serial.ShellPrompt
	s.StdoutLog = b.Serial.StdoutLog
	s.LoginTimeout = b.Serial.LoginTimeout
	s.LogDir = b.LogDir
	return s
}

// Image looks up an image by name.
func (b *Board) Image(name string) (Image, bool) {
	for _, img := range b.Images {
		if img.Name == name {
			return img, true
		}
	}
	return Image{}, false
}
