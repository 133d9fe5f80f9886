package suite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/allbin/go-serial-autotest/internal/console"
	"github.com/allbin/go-serial-autotest/internal/shell"
)

// CommandRunner is the console side of the executor.
type CommandRunner interface {
	Run(ctx context.Context, inv console.Invocation) (console.Result, error)
}

// Verdict is the judgement of one TestCase.
type Verdict struct {
	Case       TestCase
	Output     string
	Status     console.Status
	Matched    bool
	Success    bool
	Reason     string
	ReturnCode *int
	Duration   time.Duration

	// Err is set when the case could not run or be judged.
	Err error
}

// Executor runs every case of a suite in order. A failing case never stops
// the ones after it.
type Executor struct {
	Console  CommandRunner
	Runner   shell.Runner
	JudgeDir string
	Log      zerolog.Logger
}

// Execute judges cases in declaration order.
func (e *Executor) Execute(ctx context.Context, cases []TestCase) []Verdict {
	verdicts := make([]Verdict, 0, len(cases))
	for i, tc := range cases {
		v := e.Evaluate(ctx, tc)
		ev := e.Log.Info()
		if !v.Success {
			ev = e.Log.Warn().Str("reason", v.Reason)
		}
		ev.Int("index", i).
			Str("name", tc.Name).
			Str("method", string(tc.Method)).
			Bool("success", v.Success).
			Dur("duration", v.Duration).
			Msg("test case judged")
		verdicts = append(verdicts, v)
	}
	return verdicts
}

// Evaluate runs one case and judges it.
func (e *Executor) Evaluate(ctx context.Context, tc TestCase) Verdict {
	start := time.Now()
	var v Verdict
	if tc.Method == MethodExitCode {
		v = e.exitCode(ctx, tc)
	} else {
		v = e.overConsole(ctx, tc)
	}
	v.Duration = time.Since(start)
	return v
}

func (e *Executor) overConsole(ctx context.Context, tc TestCase) Verdict {
	v := Verdict{Case: tc}
	res, err := e.Console.Run(ctx, console.Invocation{
		Command:  tc.Command,
		Timeout:  tc.Timeout,
		Patterns: tc.Patterns,
	})
	v.Output, v.Status, v.Matched = res.Output, res.Status, res.Matched
	if err != nil {
		v.Err = err
		v.Reason = fmt.Sprintf("command failed: %v", err)
		return v
	}

	switch tc.Method {
	case MethodExact:
		v.Success = strings.TrimSpace(res.Output) == strings.TrimSpace(tc.Expected)
		if !v.Success {
			v.Reason = fmt.Sprintf("output %q does not equal %q", strings.TrimSpace(res.Output), strings.TrimSpace(tc.Expected))
		}
	case MethodContains:
		v.Success = strings.Contains(res.Output, tc.Expected)
		if !v.Success {
			v.Reason = fmt.Sprintf("output does not contain %q", tc.Expected)
		}
	case MethodSpecialJudge:
		e.specialJudge(ctx, tc, &v)
	default:
		v.Err = fmt.Errorf("%w %q", ErrUnknownMethod, tc.Method)
		v.Reason = v.Err.Error()
	}

	if !v.Success && res.Status == console.StatusTimedOut {
		v.Reason = fmt.Sprintf("timed out after %s; %s", tc.Timeout, v.Reason)
	}
	return v
}

func (e *Executor) exitCode(ctx context.Context, tc TestCase) Verdict {
	v := Verdict{Case: tc, Status: console.StatusCompleted}

	cctx, cancel := context.WithTimeout(ctx, tc.Timeout)
	defer cancel()
	res, err := shell.Sh(cctx, e.runner(), tc.Command)
	v.Output = strings.TrimRight(res.Stdout, "\n")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			v.Status = console.StatusTimedOut
		}
		v.Err = fmt.Errorf("%w: local command: %w", ErrEvaluation, err)
		v.Reason = v.Err.Error()
		return v
	}

	code := res.ExitCode
	v.ReturnCode = &code
	v.Success = code == tc.ExpectedCode
	if !v.Success {
		v.Reason = fmt.Sprintf("exit code %d, expected %d", code, tc.ExpectedCode)
	}
	return v
}

// JudgeScript is where the judge script for a named case lives.
func (e *Executor) JudgeScript(name string) string {
	dir := e.JudgeDir
	if dir == "" {
		dir = "./tests"
	}
	return filepath.Join(dir, name+"_special_judge.sh")
}

func (e *Executor) specialJudge(ctx context.Context, tc TestCase, v *Verdict) {
	script := e.JudgeScript(tc.Name)
	if _, err := os.Stat(script); err != nil {
		v.Err = fmt.Errorf("%w: judge script: %w", ErrEvaluation, err)
		v.Reason = v.Err.Error()
		return
	}

	res, err := e.runner().Run(ctx, script, v.Output)
	if err != nil {
		v.Err = fmt.Errorf("%w: judge script %s: %w", ErrEvaluation, script, err)
		v.Reason = v.Err.Error()
		return
	}
	code := res.ExitCode
	v.ReturnCode = &code
	v.Success = code == 0
	if !v.Success {
		v.Reason = fmt.Sprintf("judge script exited with code %d", code)
		if out := res.Output(); out != "" {
			v.Reason += ": " + out
		}
	}
}

func (e *Executor) runner() shell.Runner {
	if e.Runner == nil {
		return shell.Exec{Log: e.Log}
	}
	return e.Runner
}

// Summarize counts passed and failed verdicts.
func Summarize(verdicts []Verdict) (passed, failed int) {
	for _, v := range verdicts {
		if v.Success {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
