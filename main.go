package main

import (
	"os"

	"github.com/brevdev/hfi-regress/pkg/cmd"
	"github.com/brevdev/hfi-regress/pkg/cmd/cmderrors"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/terminal"
)

func main() {
	done := breverrors.GetDefaultErrorReporter().Setup()
	command := cmd.NewDefaultHarnessCommand()

	err := command.Execute()
	cmderrors.DisplayAndHandleError(terminal.New(), os.Stderr, err)
	done()
	os.Exit(breverrors.ExitCode(err))
}
