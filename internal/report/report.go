// Package report renders pipeline reports as terminal tables and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evertras/bubble-table/table"

	"github.com/allbin/go-serial-autotest/internal/pipeline"
	"github.com/allbin/go-serial-autotest/internal/suite"
	"github.com/allbin/go-serial-autotest/internal/tui/styles"
)

const (
	colIndex   = "index"
	colName    = "name"
	colMethod  = "method"
	colResult  = "result"
	colStatus  = "status"
	colReason  = "reason"
	colElapsed = "elapsed"
)

// Table renders one report's verdicts. The reason column takes whatever
// width is left of at least 100 columns.
func Table(rep *pipeline.Report, width int) string {
	columns := []table.Column{
		table.NewColumn(colIndex, "#", 4),
		table.NewColumn(colName, "Case", 28),
		table.NewColumn(colMethod, "Method", 14),
		table.NewColumn(colResult, "Result", 8),
		table.NewColumn(colStatus, "Status", 16),
		table.NewColumn(colElapsed, "Time", 9),
		table.NewFlexColumn(colReason, "Reason", 1),
	}

	rows := make([]table.Row, 0, len(rep.Verdicts))
	for i, v := range rep.Verdicts {
		result := table.NewStyledCell("PASS", styles.PassStyle)
		if !v.Success {
			result = table.NewStyledCell("FAIL", styles.FailStyle)
		}
		rows = append(rows, table.NewRow(table.RowData{
			colIndex:   fmt.Sprint(i + 1),
			colName:    caseLabel(v.Case),
			colMethod:  string(v.Case.Method),
			colResult:  result,
			colStatus:  v.Status.String(),
			colElapsed: v.Duration.Round(time.Millisecond).String(),
			colReason:  v.Reason,
		}))
	}

	if width < 100 {
		width = 100
	}
	t := table.New(columns).
		WithRows(rows).
		WithTargetWidth(width).
		HeaderStyle(styles.TableHeaderStyle).
		WithBaseStyle(styles.TableBaseStyle).
		WithStaticFooter(footer(rep)).
		BorderRounded()
	return t.View()
}

func caseLabel(tc suite.TestCase) string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.Command
}

func footer(rep *pipeline.Report) string {
	passed, failed := rep.Counts()
	return fmt.Sprintf("%d passed, %d failed in %s", passed, failed, rep.Finished.Sub(rep.Started).Round(time.Second))
}

// Render writes a heading and table per report.
func Render(w io.Writer, reports []*pipeline.Report, width int) error {
	for _, rep := range reports {
		heading := styles.TitleStyle.Render(fmt.Sprintf("%s  run %s", rep.Image, rep.RunID))
		if _, err := fmt.Fprintln(w, heading); err != nil {
			return err
		}

		switch {
		case rep.LoginFailed:
			fmt.Fprintln(w, styles.FailStyle.Render("login failed: ")+errString(rep.Err))
		case rep.Err != nil && len(rep.Verdicts) == 0:
			fmt.Fprintln(w, styles.FailStyle.Render("aborted: ")+errString(rep.Err))
		default:
			fmt.Fprintln(w, Table(rep, width))
		}
		fmt.Fprintln(w)
	}
	return nil
}

type jsonReport struct {
	RunID       string     `json:"run_id"`
	Image       string     `json:"image"`
	Started     time.Time  `json:"started"`
	Finished    time.Time  `json:"finished"`
	LoginFailed bool       `json:"login_failed"`
	Error       string     `json:"error,omitempty"`
	Passed      int        `json:"passed"`
	Failed      int        `json:"failed"`
	Cases       []jsonCase `json:"cases"`
}

type jsonCase struct {
	Name       string `json:"name,omitempty"`
	Command    string `json:"command"`
	Method     string `json:"method"`
	Success    bool   `json:"success"`
	Status     string `json:"status"`
	Matched    bool   `json:"matched"`
	Reason     string `json:"reason,omitempty"`
	ReturnCode *int   `json:"return_code,omitempty"`
	Output     string `json:"output"`
	DurationMS int64  `json:"duration_ms"`
}

func toJSON(rep *pipeline.Report) jsonReport {
	passed, failed := rep.Counts()
	out := jsonReport{
		RunID:       rep.RunID,
		Image:       rep.Image,
		Started:     rep.Started,
		Finished:    rep.Finished,
		LoginFailed: rep.LoginFailed,
		Error:       errString(rep.Err),
		Passed:      passed,
		Failed:      failed,
		Cases:       make([]jsonCase, 0, len(rep.Verdicts)),
	}
	for _, v := range rep.Verdicts {
		out.Cases = append(out.Cases, jsonCase{
			Name:       v.Case.Name,
			Command:    v.Case.Command,
			Method:     string(v.Case.Method),
			Success:    v.Success,
			Status:     v.Status.String(),
			Matched:    v.Matched,
			Reason:     v.Reason,
			ReturnCode: v.ReturnCode,
			Output:     v.Output,
			DurationMS: v.Duration.Milliseconds(),
		})
	}
	return out
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []*pipeline.Report) error {
	out := make([]jsonReport, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toJSON(rep))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteFile writes reports as JSON to path, creating parent directories.
func WriteFile(path string, reports []*pipeline.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteJSON(f, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
