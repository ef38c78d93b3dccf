// Package test runs one built-in leaf test in this process. The dispatcher
// reaches it as `hfi-regress test <name>`.
package test

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/cmdcontext"
	"github.com/brevdev/hfi-regress/pkg/harness"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

type Deps struct {
	Info     testinfo.Deps
	Executor host.Executor
	Self     func() (string, error)
}

func DefaultDeps() Deps {
	return Deps{
		Info:     testinfo.DefaultDeps(),
		Executor: host.ProcessExecutor{},
		Self:     harness.SelfPath,
	}
}

func NewCmdTest(t *terminal.Terminal, reg *regtest.Registry, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <name>",
		Short: "Run one built-in test",
		Long: `Run one built-in test against the configured nodes. Exits 0 on pass
and non-zero on failure.`,
		Example: `
  hfi-regress test LoadModule --nodelist node1,node2 --hfisrc ~/src/hfi1
  hfi-regress test Snoop --args capture`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: reg.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := cmdcontext.Load(cmd.Flags(), deps.Info, t.Out())
			if err != nil {
				return err
			}
			defer cctx.Close() //nolint:errcheck // log file
			self, err := deps.Self()
			if err != nil {
				return err
			}
			ti := cctx.Info
			env := &regtest.Env{
				Info:     ti,
				Runner:   host.NewRunner(cctx.Fs, deps.Executor, cctx.Log, ti.Key()),
				Log:      cctx.Log,
				Term:     t,
				Fs:       cctx.Fs,
				Out:      t.Out(),
				Self:     ti.RemotePath(self),
				TestsDir: lo.Ternary(cctx.Options.TestsDir != "", cctx.Options.TestsDir, harness.DefaultTestsDir(ti.HfiSrc())),
			}

			// SIGINT ends listener tests cleanly
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return reg.Run(ctx, args[0], env)
		},
	}
	return cmd
}
