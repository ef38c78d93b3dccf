package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/alessio/shellescape"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

type Dispatcher struct {
	Binder   Binder
	Resolver Resolver
	Launcher Launcher
	Reporter breverrors.ErrorReporter
	DryRun   bool
	// OnResult, when set, is called after each entry finishes.
	OnResult func(Result)
	now      func() time.Time
}

// Run executes selected strictly in order. A test passes when its exit
// status equals the entry's ExpectExit.
func (d *Dispatcher) Run(ctx context.Context, rc *RunContext, selected []Selected) {
	for _, s := range selected {
		if ctx.Err() != nil {
			rc.Warn(fmt.Sprintf("run interrupted before %s", s.Entry.Name))
			return
		}
		r := d.runOne(ctx, rc, s)
		rc.Record(r)
		if d.OnResult != nil {
			d.OnResult(r)
		}
	}
}

func (d *Dispatcher) runOne(ctx context.Context, rc *RunContext, s Selected) Result {
	e := s.Entry
	r := Result{Name: e.Name, Exe: e.Exe}
	if s.Skipped {
		r.Outcome = Skipped
		r.Message = "SKIPPED!"
		return r
	}

	args := Materialize(e, s.MatchedType, d.Binder, rc.Warn)
	r.Args = args
	rc.Log.Logf(5, "Running test: %s", e.Name)
	rc.Log.Logf(5, "Raw Test args: %s", e.Args)
	rc.Log.Logf(5, "Processed Test args: %s", args)
	rc.Log.Logf(5, "Test Type: %s", catalog.Tags(e.Types).String())

	argv, err := d.Resolver.Command(e, args)
	if err != nil {
		return d.fail(rc, r, err.Error())
	}
	rc.Info(fmt.Sprintf("Starting Test %s [%s]", e.Exe, args))
	if d.DryRun {
		rc.Term.Vprint(shellescape.QuoteCommand(argv))
		r.Outcome = Skipped
		r.Message = "dry run"
		return r
	}

	start := d.clock()
	status, err := d.Launcher.Launch(ctx, argv)
	r.Duration = d.clock().Sub(start)
	r.ExitStatus = status
	if err != nil {
		return d.fail(rc, r, err.Error())
	}
	if status != e.ExpectExit {
		return d.fail(rc, r, fmt.Sprintf("exit status %d, want %d", status, e.ExpectExit))
	}
	rc.Pass(e.Name + " : " + args)
	r.Outcome = Passed
	return r
}

func (d *Dispatcher) fail(rc *RunContext, r Result, why string) Result {
	rc.Fail(r.Name + " : " + r.Args)
	rc.Log.Logf(1, "%s failed: %s", r.Name, why)
	if d.Reporter != nil {
		d.Reporter.AddTag("run", rc.ID.String())
		d.Reporter.AddTag("test", r.Name)
		d.Reporter.ReportMessage(fmt.Sprintf("%s failed: %s", r.Name, why))
	}
	r.Outcome = Failed
	r.Message = why
	return r
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}
