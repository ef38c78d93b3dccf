// Package cmd is the entrypoint to cli
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/cmd/list"
	"github.com/brevdev/hfi-regress/pkg/cmd/run"
	"github.com/brevdev/hfi-regress/pkg/cmd/schedule"
	"github.com/brevdev/hfi-regress/pkg/cmd/test"
	"github.com/brevdev/hfi-regress/pkg/cmd/version"
	"github.com/brevdev/hfi-regress/pkg/cmdcontext"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/regtest/builtin"
	"github.com/brevdev/hfi-regress/pkg/terminal"
)

func NewDefaultHarnessCommand() *cobra.Command {
	return NewHarnessCommand(os.Stdin, os.Stdout, os.Stderr, run.DefaultDeps(), test.DefaultDeps())
}

func NewHarnessCommand(in io.Reader, out io.Writer, errOut io.Writer, runDeps run.Deps, testDeps test.Deps) *cobra.Command {
	t := terminal.NewWithWriters(out, errOut)
	reg := builtin.Registry()

	cmds := &cobra.Command{
		Use:   "hfi-regress",
		Short: "HFI driver regression harness",
		Long: `
      hfi-regress selects regression tests for the HFI InfiniBand driver,
      runs them against a set of test nodes and summarizes the results.

      Every option can also come from HFI_REGRESS_<OPTION> or the config file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run:           runHelp,
	}
	cmds.SetIn(in)
	cmds.SetOut(out)
	cmds.SetErr(errOut)
	cmds.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return breverrors.NewValidationError(err.Error())
	})
	cmdcontext.AddFlags(cmds)

	cmds.AddCommand(run.NewCmdRun(t, reg, runDeps))
	cmds.AddCommand(list.NewCmdList(t, runDeps.Info))
	cmds.AddCommand(test.NewCmdTest(t, reg, testDeps))
	cmds.AddCommand(schedule.NewCmdSchedule(t, reg, runDeps))
	cmds.AddCommand(version.NewCmdVersion(t))

	return cmds
}

func runHelp(cmd *cobra.Command, _ []string) {
	_ = cmd.Help()
}
