package harness

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// Session is a configured harness that can be run any number of times.
// Each Run starts from a fresh RunContext.
type Session struct {
	Info     *testinfo.TestInfo
	Catalog  *catalog.Catalog
	BuiltIn  func(name string) bool
	Self     string
	TestsDir string
	Launcher Launcher
	Reporter breverrors.ErrorReporter
	Log      *testlog.Logger
	Term     *terminal.Terminal
	Fs       afero.Fs

	Progress bool
	// JUnit, when set, is where each run's report is written.
	JUnit  string
	Strict bool
	DryRun bool
}

// Check rejects a catalog with placeholders that cannot resolve. Outside
// strict mode the problems only warn, once per run, when the entry
// materializes.
func (s *Session) Check() error {
	problems := catalog.Validate(s.Catalog)
	if !s.Strict || len(problems) == 0 {
		return nil
	}
	lines := lo.Map(problems, func(p catalog.Problem, _ int) string { return p.String() })
	return breverrors.NewConfigError("catalog has unresolvable placeholders:\n  %s", strings.Join(lines, "\n  "))
}

func (s *Session) testsDir() string {
	if s.TestsDir != "" {
		return s.TestsDir
	}
	return DefaultTestsDir(s.Info.HfiSrc())
}

// Run selects, dispatches and summarizes one pass over the catalog.
func (s *Session) Run(ctx context.Context) (*RunContext, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	rc := NewRunContext(s.Log, s.Term)
	rc.Log.Logf(1, "Run %s: %s", rc.ID, s.Info)
	selected := Select(s.Catalog, SelectionFrom(s.Info), rc.Warn)

	d := &Dispatcher{
		Binder: Bindings(s.Info),
		Resolver: Resolver{
			Self:     s.Self,
			TestsDir: s.testsDir(),
			BuiltIn:  s.BuiltIn,
		},
		Launcher: s.Launcher,
		Reporter: s.Reporter,
		DryRun:   s.DryRun,
	}
	if s.Progress {
		bar := s.Term.NewProgressBar(len(selected), "tests")
		d.OnResult = func(r Result) { bar.Advance(r.Name) }
	}
	d.Run(ctx, rc, selected)

	rc.Summary(s.Term.Out())
	rc.SummaryTable()
	if s.JUnit != "" {
		if err := WriteJUnit(s.Fs, s.JUnit, rc); err != nil {
			return rc, err
		}
	}
	return rc, nil
}
