package schedule

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/cmd/run"
	"github.com/brevdev/hfi-regress/pkg/cmdcontext"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/schedule"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

func NewCmdSchedule(t *terminal.Terminal, reg *regtest.Registry, deps run.Deps) *cobra.Command {
	var (
		cronSpec string
		detached bool
		now      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rerun the selected tests on a cron schedule",
		Long: `Rerun the selected tests on a cron schedule until interrupted. Every pass
starts from a fresh summary. With --daemon the scheduler detaches and writes
its pid and output under --log-dir.`,
		Example: `
  hfi-regress schedule --cron "0 2 * * *" --type quick
  hfi-regress schedule --cron "@every 6h" --daemon --log-dir /var/log/hfi-regress`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := cmdcontext.Load(cmd.Flags(), deps.Info, t.Out())
			if err != nil {
				return err
			}
			defer cctx.Close() //nolint:errcheck // log file
			if detached && cctx.Options.LogDir == "" {
				return breverrors.NewConfigError("--daemon needs --%s for its pid and log files", testinfo.FlagLogDir)
			}

			s, err := run.NewSession(t, cctx, reg, deps)
			if err != nil {
				return err
			}
			idle := t.NewSpinner()
			idle.Suffix = " waiting for the next pass (" + cronSpec + ")"
			job := schedule.FuncJob{
				JobName: "harness",
				JobSpec: schedule.Spec{Cron: cronSpec, RunNow: now},
				Fn: func() error {
					if !detached {
						idle.Stop()
						defer idle.Start()
					}
					err := run.Once(context.Background(), s)
					if err != nil {
						return fmt.Errorf("pass failed: %w", err)
					}
					return nil
				},
			}
			sched := schedule.NewScheduler(cctx.Log, job)
			if detached {
				return schedule.RunAsDaemon(sched, cctx.Fs, t, cctx.Options.LogDir)
			}
			idle.Start()
			defer idle.Stop()
			return sched.Run()
		},
	}
	cmd.Flags().StringVar(&cronSpec, "cron", "", `Cron spec, e.g. "0 2 * * *" or "@every 6h"`)
	cmd.Flags().BoolVar(&detached, "daemon", false, "Detach and keep running in the background")
	cmd.Flags().BoolVar(&now, "now", false, "Also run a pass immediately")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}
