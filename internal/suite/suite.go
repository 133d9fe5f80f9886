// Package suite loads declarative test suites and judges each case's
// console output.
package suite

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrInvalidSuite  = errors.New("invalid test suite")
	ErrUnknownMethod = errors.New("unknown evaluation method")

	// ErrEvaluation marks a case that could not be judged at all, such as a
	// missing judge script. It fails that case only.
	ErrEvaluation = errors.New("evaluation error")
)

// DefaultTimeout applies to cases without a timeout.
const DefaultTimeout = 10 * time.Second

// Method selects how a case's result is judged.
type Method string

const (
	MethodExact        Method = "exact"
	MethodContains     Method = "contains"
	MethodExitCode     Method = "exit_code"
	MethodSpecialJudge Method = "special_judge"
)

func (m Method) Valid() bool {
	switch m {
	case MethodExact, MethodContains, MethodExitCode, MethodSpecialJudge:
		return true
	}
	return false
}

// TestCase is one entry of a suite file.
type TestCase struct {
	Name     string
	Command  string
	Method   Method
	Timeout  time.Duration
	Patterns []string

	// Expected is the expected output for exact/contains and the
	// expected code for exit_code.
	Expected     string
	ExpectedCode int
}

type suiteFile struct {
	Tests []caseFile `toml:"tests"`
}

type caseFile struct {
	Name           string   `toml:"name"`
	Command        string   `toml:"command"`
	ExpectedOutput any      `toml:"expected_output"`
	Method         string   `toml:"method"`
	Timeout        any      `toml:"timeout"`
	Patterns       []string `toml:"patterns"`
}

// Load reads a suite file.
func Load(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	cases, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// Parse decodes a TOML suite with a [[tests]] array.
func Parse(data []byte) ([]TestCase, error) {
	var f suiteFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSuite, err)
	}

	cases := make([]TestCase, 0, len(f.Tests))
	for i, raw := range f.Tests {
		tc, err := raw.testCase()
		if err != nil {
			return nil, fmt.Errorf("%w: tests[%d]: %w", ErrInvalidSuite, i, err)
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

func (c caseFile) testCase() (TestCase, error) {
	tc := TestCase{
		Name:     c.Name,
		Command:  c.Command,
		Method:   Method(c.Method),
		Timeout:  DefaultTimeout,
		Patterns: c.Patterns,
	}
	if tc.Method == "" {
		tc.Method = MethodExact
	}
	if !tc.Method.Valid() {
		return tc, fmt.Errorf("%w %q", ErrUnknownMethod, c.Method)
	}
	if tc.Command == "" {
		return tc, errors.New("command is required")
	}
	if tc.Method == MethodSpecialJudge && tc.Name == "" {
		return tc, errors.New("special_judge needs a name")
	}

	if c.Timeout != nil {
		d, err := parseTimeout(c.Timeout)
		if err != nil {
			return tc, err
		}
		tc.Timeout = d
	}

	switch v := c.ExpectedOutput.(type) {
	case nil:
	case string:
		tc.Expected = v
		if tc.Method == MethodExitCode {
			code, err := strconv.Atoi(v)
			if err != nil {
				return tc, fmt.Errorf("exit_code expects an integer, got %q", v)
			}
			tc.ExpectedCode = code
		}
	case int64:
		tc.Expected = strconv.FormatInt(v, 10)
		tc.ExpectedCode = int(v)
	case float64:
		tc.Expected = strconv.FormatFloat(v, 'f', -1, 64)
		tc.ExpectedCode = int(v)
	case bool:
		tc.Expected = strconv.FormatBool(v)
	default:
		return tc, fmt.Errorf("unsupported expected_output type %T", v)
	}
	return tc, nil
}

// parseTimeout accepts seconds as a number or a Go duration string.
func parseTimeout(v any) (time.Duration, error) {
	var d time.Duration
	switch t := v.(type) {
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	case string:
		var err error
		if d, err = time.ParseDuration(t); err != nil {
			return 0, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
	default:
		return 0, fmt.Errorf("invalid timeout type %T", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %v", d)
	}
	return d, nil
}
