// Package mpitest runs the Intel MPI test suite across the node list.
package mpitest

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/brevdev/hfi-regress/pkg/regtest"
)

const (
	Name = "MpiTest"

	// AbortProgram succeeds by aborting, so exit status 1 is its pass.
	AbortProgram = "MPI_Abort_c"

	defaultVerbsDir = "/usr/mpi/gcc/openmpi-1.8.2a1/tests/intel_mpitest/"
	defaultPSMDir   = "/usr/mpi/gcc/openmpi-1.8.2a1-hfi/tests/intel_mpitest/"
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireHosts(1); err != nil {
		return err
	}
	env.Print(env.Info.String())
	np := env.Info.NP()
	env.Log.Logf(0, "Found %d hosts setting -np for mpirun accordingly", np)

	paths, err := env.ResolveMPI(ctx)
	if err != nil {
		return err
	}
	base := SuiteDir(env)
	cmdBase := env.MPIRun(paths, np, env.Info.HostNames(env.Info.HostCount())) + " " + base
	h := env.Info.Host(0)

	env.Log.Logf(0, "Starting MPI Test benchmark %s", base)
	run := func(prog string) (int, error) {
		cmd := cmdBase + prog
		env.Log.Logf(5, "MPI CMD: %s", cmd)
		return env.Runner.Stream(ctx, h, cmd, env.Out)
	}

	status, err := run(AbortProgram)
	if err != nil {
		return err
	}
	var failed *multierror.Error
	if status != 1 {
		failed = multierror.Append(failed, fmt.Errorf("%s exited %d, want 1", AbortProgram, status))
	}
	for _, prog := range Programs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		status, err := run(prog)
		if err != nil {
			return err
		}
		if status != 0 {
			failed = multierror.Append(failed, fmt.Errorf("%s exited %d", prog, status))
		}
	}
	if err := failed.ErrorOrNil(); err != nil {
		return regtest.Fail("%d MPI test program(s) failed: %v", len(failed.Errors), err)
	}
	return env.Pass("All MPITest tests passed")
}

// SuiteDir is --basedir, or the suite shipped with the transport's MPI.
// The result always ends in a slash so program names append directly.
func SuiteDir(env *regtest.Env) string {
	dir := env.Info.BaseDir()
	switch {
	case dir != "":
		env.Log.Logf(0, "Using user defined base_dir of %s", dir)
	case env.Info.MPIVerbs():
		dir = defaultVerbsDir
	default:
		dir = defaultPSMDir
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return dir
}
