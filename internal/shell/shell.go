// Package shell runs local subprocesses for the provisioning steps and the
// exit-code and judge-script evaluators.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const waitDelay = 200 * time.Millisecond

// ErrNotFound is returned when the executable does not exist.
var ErrNotFound = errors.New("command not found")

// Result is the outcome of a process that ran to exit.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner starts a process and waits for it. A non-zero exit is reported
// through Result.ExitCode, not as an error; errors mean the process could
// not run at all.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	Log zerolog.Logger
}

func (e Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// grandchildren holding the pipes must not outlive a cancelled context
	cmd.WaitDelay = waitDelay

	e.Log.Debug().Str("cmd", name).Strs("args", args).Msg("exec")
	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.As(err, &exitErr):
	case isNotFound(err):
		return res, ErrNotFound
	default:
		return res, err
	}

	e.Log.Debug().Str("cmd", name).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("exec done")
	return res, nil
}

// Sh runs command through "sh -c".
func Sh(ctx context.Context, r Runner, command string) (Result, error) {
	return r.Run(ctx, "sh", "-c", command)
}

// Output returns the trimmed stdout and stderr, whichever is non-empty,
// joined for use in error messages.
func (r Result) Output() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{r.Stdout, r.Stderr} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return true
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && (errors.Is(pathErr.Err, exec.ErrNotFound) || errors.Is(pathErr.Err, os.ErrNotExist)) {
		return true
	}
	return false
}
