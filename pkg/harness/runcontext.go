// Package harness selects catalog entries, materializes their command lines
// and runs them one at a time.
package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// FailedExitCode is the harness exit status when any test failed.
const FailedExitCode = 255

type Outcome string

const (
	Passed  Outcome = "PASS"
	Failed  Outcome = "FAIL"
	Skipped Outcome = "SKIP"
)

type Result struct {
	Name       string
	Exe        string
	Args       string
	Outcome    Outcome
	ExitStatus int
	Duration   time.Duration
	Message    string
}

// RunContext is the state of one harness run.
type RunContext struct {
	ID      uuid.UUID
	Started time.Time
	Log     *testlog.Logger
	Term    *terminal.Terminal

	Warnings []string
	Failures []string
	Passes   []string
	Results  []Result
}

func NewRunContext(log *testlog.Logger, term *terminal.Terminal) *RunContext {
	id := uuid.New()
	return &RunContext{
		ID:      id,
		Started: time.Now(),
		Log:     log.WithField("run", id.String()[:8]),
		Term:    term,
	}
}

func (rc *RunContext) Warn(msg string) {
	rc.Warnings = append(rc.Warnings, msg)
	rc.Term.Warn(msg)
}

func (rc *RunContext) Info(msg string) {
	rc.Term.Info(msg)
}

func (rc *RunContext) Pass(msg string) {
	rc.Passes = append(rc.Passes, msg)
	rc.Term.Pass(msg)
}

func (rc *RunContext) Fail(msg string) {
	rc.Failures = append(rc.Failures, msg)
	rc.Term.Fail(msg)
}

func (rc *RunContext) Record(r Result) {
	rc.Results = append(rc.Results, r)
}

// ExitCode is 0 when nothing failed and FailedExitCode otherwise.
func (rc *RunContext) ExitCode() int {
	if len(rc.Failures) > 0 {
		return FailedExitCode
	}
	return 0
}

// Summary lists warnings, then failures, then passes.
func (rc *RunContext) Summary(w io.Writer) {
	fmt.Fprintln(w, "-------------")
	fmt.Fprintln(w, "Test Summary:")
	fmt.Fprintln(w, "-------------")
	for _, m := range rc.Warnings {
		fmt.Fprintln(w, "[WARN]", m)
	}
	for _, m := range rc.Failures {
		fmt.Fprintln(w, "[FAIL]", m)
	}
	for _, m := range rc.Passes {
		fmt.Fprintln(w, "[PASS]", m)
	}
	fmt.Fprintln(w)
}

// SummaryTable renders one row per result.
func (rc *RunContext) SummaryTable() {
	rows := make([]table.Row, 0, len(rc.Results))
	for _, r := range rc.Results {
		rows = append(rows, table.Row{r.Name, rc.colorOutcome(r.Outcome), r.ExitStatus, r.Duration.Round(time.Second)})
	}
	rc.Term.Table(table.Row{"Test", "Result", "Exit", "Duration"}, rows)
}

func (rc *RunContext) colorOutcome(o Outcome) string {
	switch o {
	case Passed:
		return rc.Term.Green(string(o))
	case Failed:
		return rc.Term.Red(string(o))
	default:
		return rc.Term.Yellow(string(o))
	}
}
