package regtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

// ResolveMPI finds the MPI install on the first host or fails the test.
func (e *Env) ResolveMPI(ctx context.Context) (testinfo.MPIPaths, error) {
	paths, ok := testinfo.ResolveMPI(ctx, e.Runner, e.Info.Host(0), testinfo.DefaultMPICandidates, e.Log)
	if !ok {
		return paths, Fail("no MPI install found on %s", e.Info.HostName(0))
	}
	e.Log.Logf(5, "Using MPI from %s", paths.Prefix)
	return paths, nil
}

// psmLibDir is the PSM library to put ahead of the system one, or empty
// for verbs runs and the installed default.
func (e *Env) psmLibDir() string {
	if e.Info.MPIVerbs() {
		return ""
	}
	lib := e.Info.PsmLib()
	if lib == "" || lib == testinfo.Sentinel {
		return ""
	}
	return e.Info.RemotePath(lib)
}

// MPIRun is the mpirun prefix for np ranks across hosts. The library path
// is exported to every rank so a private PSM build is picked up remotely.
func (e *Env) MPIRun(paths testinfo.MPIPaths, np int, hosts []string) string {
	libPath := paths.Lib
	if psm := e.psmLibDir(); psm != "" {
		libPath += ":" + psm
	}
	return fmt.Sprintf("export LD_LIBRARY_PATH=%s; %s/mpirun%s LD_LIBRARY_PATH=$LD_LIBRARY_PATH -np %d -H %s",
		libPath, paths.Bin, e.Info.MPIOpts(), np, strings.Join(hosts, ","))
}
