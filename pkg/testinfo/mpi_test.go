package testinfo

import (
	"context"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

type dirProbe struct {
	present map[string]bool
	cmds    []string
}

func (d *dirProbe) Run(_ context.Context, _ host.Host, cmd string, _ ...host.RunOption) (host.Result, error) {
	d.cmds = append(d.cmds, cmd)
	for dir := range d.present {
		if cmd == "test -d "+dir {
			return host.Result{}, nil
		}
	}
	return host.Result{ExitStatus: 1}, nil
}

func TestOrderMPICandidates(t *testing.T) {
	want := []string{
		"/usr/mpi/gcc/openmpi-1.10.2-hfi",
		"/usr/mpi/gcc/openmpi-1.8.2a1-hfi",
		"/usr/mpi/gcc/openmpi-1.6.5-qlc",
		"/usr/lib64/openmpi",
	}
	if diff := cmp.Diff(want, OrderMPICandidates(DefaultMPICandidates)); diff != "" {
		t.Errorf("OrderMPICandidates() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMPI(t *testing.T) {
	probe := &dirProbe{present: map[string]bool{
		"/usr/mpi/gcc/openmpi-1.6.5-qlc/bin": true,
		"/usr/lib64/openmpi/bin":             true,
	}}
	paths, ok := ResolveMPI(context.Background(), probe, host.Host{Name: "node1"}, DefaultMPICandidates, nil)
	assert.True(t, ok)
	assert.Equal(t, MPIPaths{
		Prefix: "/usr/mpi/gcc/openmpi-1.6.5-qlc",
		Lib:    "/usr/mpi/gcc/openmpi-1.6.5-qlc/lib64",
		Bin:    "/usr/mpi/gcc/openmpi-1.6.5-qlc/bin",
	}, paths)
	assert.Len(t, probe.cmds, 3)
}

func TestResolveMPIUnversioned(t *testing.T) {
	probe := &dirProbe{present: map[string]bool{"/usr/lib64/openmpi/bin": true}}
	paths, ok := ResolveMPI(context.Background(), probe, host.Host{Name: "node1"}, DefaultMPICandidates, nil)
	assert.True(t, ok)
	assert.Equal(t, "/usr/lib64/openmpi/lib", paths.Lib)
}

func TestResolveMPINothingFound(t *testing.T) {
	probe := &dirProbe{}
	_, ok := ResolveMPI(context.Background(), probe, host.Host{Name: "node1"}, DefaultMPICandidates, testlog.New(io.Discard, 5))
	assert.False(t, ok)
	assert.Len(t, probe.cmds, len(DefaultMPICandidates))
}

func TestOSUBenchmarkDir(t *testing.T) {
	probe := &dirProbe{present: map[string]bool{"/usr/lib64/openmpi/bin": true}}
	assert.Equal(t, "/usr/lib64/openmpi/bin/mpitests-", OSUBenchmarkDir(context.Background(), probe, host.Host{}))
	assert.Equal(t, "", OSUBenchmarkDir(context.Background(), &dirProbe{}, host.Host{}))
}
