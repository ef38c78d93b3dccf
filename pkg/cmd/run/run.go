// Package run is the dispatcher: it selects catalog entries and runs each
// one as a child process, then prints the summary.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/cmd/list"
	"github.com/brevdev/hfi-regress/pkg/cmdcontext"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/harness"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const FlagProgress = "progress"

type Deps struct {
	Info testinfo.Deps
	// Launcher builds the child launcher for a run configured with opts.
	Launcher func(t *terminal.Terminal, opts testinfo.Options) harness.Launcher
	Self     func() (string, error)
}

func DefaultDeps() Deps {
	return Deps{
		Info: testinfo.DefaultDeps(),
		Launcher: func(t *terminal.Terminal, opts testinfo.Options) harness.Launcher {
			return harness.ProcessLauncher{
				Stdout: t.Out(),
				Stderr: t.Err(),
				Env:    harness.ChildEnv(os.Environ(), opts),
			}
		},
		Self: harness.SelfPath,
	}
}

func NewCmdRun(t *terminal.Terminal, reg *regtest.Registry, deps Deps) *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the regression tests",
		Long: `Run the regression tests selected by --type (default "default") or by
--testlist, one at a time. Exits 255 when any test failed.`,
		Example: `
  hfi-regress run --nodelist node1,node2 --type quick
  hfi-regress run --testlist ModuleLoad,IMB-Psm --hfisrc ~/src/hfi1
  hfi-regress run --type all --junit report.xml --progress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := cmdcontext.Load(cmd.Flags(), deps.Info, t.Out())
			if err != nil {
				return err
			}
			defer cctx.Close() //nolint:errcheck // log file
			if cctx.Info.ListOnly() {
				c, err := catalog.Load(cctx.Fs, cctx.Options.Catalog)
				if err != nil {
					return err
				}
				list.Print(t, c, cctx.Info)
				return nil
			}

			s, err := NewSession(t, cctx, reg, deps)
			if err != nil {
				return err
			}
			s.Progress = progress

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Once(ctx, s)
		},
	}
	cmd.Flags().BoolVar(&progress, FlagProgress, false, "Show a progress bar on stderr")

	return cmd
}

// NewSession wires a harness session from the loaded command context.
func NewSession(t *terminal.Terminal, cctx *cmdcontext.Context, reg *regtest.Registry, deps Deps) (*harness.Session, error) {
	self, err := deps.Self()
	if err != nil {
		return nil, err
	}
	c, err := catalog.Load(cctx.Fs, cctx.Options.Catalog)
	if err != nil {
		return nil, err
	}
	opts := cctx.Options
	return &harness.Session{
		Info:     cctx.Info,
		Catalog:  c,
		BuiltIn:  reg.IsBuiltIn,
		Self:     self,
		TestsDir: opts.TestsDir,
		Launcher: deps.Launcher(t, opts),
		Reporter: breverrors.GetDefaultErrorReporter(),
		Log:      cctx.Log,
		Term:     t,
		Fs:       cctx.Fs,
		JUnit:    opts.JUnit,
		Strict:   opts.StrictPlaceholders,
		DryRun:   opts.DryRun,
	}, nil
}

// Once runs a single pass and turns failed tests into the harness exit
// status.
func Once(ctx context.Context, s *harness.Session) error {
	rc, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if code := rc.ExitCode(); code != 0 {
		return breverrors.NewExitError(code, "%d of %d tests failed", len(rc.Failures), len(rc.Results))
	}
	return nil
}
