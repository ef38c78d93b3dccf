package perfreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host/hosttest"
	"github.com/brevdev/hfi-regress/pkg/regtest/regtesttest"
)

const (
	workDir     = "/tmp/tester.201603140926"
	goodSummary = "osu_bw 4194304 12001.5 pass\nosu_latency 8 1.02 pass\n"
	badSummary  = "osu_bw 4194304 9001.5 fail\nosu_latency 8 1.02 pass\n"
)

func script(e *hosttest.Executor) {
	e.On("cat "+workDir+"/OUTPUT-03-14-16/no-turbo/summary", hosttest.OK(goodSummary)).
		On("cat "+workDir+"/IPoSTL_OUTPUT-03-14-16/ipostl-summary.txt", hosttest.OK("stream,4.1,pass\n")).
		On("cat "+workDir+"/VERBS_OUTPUT-03-14-16/VerbsLZSummary.csv", hosttest.OK("size,bw,result\n65536,11900,ok\n"))
}

func TestRunPassesAndCleansUp(t *testing.T) {
	t.Setenv("USER", "tester")
	h := regtesttest.New(t, regtesttest.Options())
	script(h.Exec)

	require.NoError(t, New().Run(context.Background(), h.Env))

	node1 := h.Exec.Commands("node1")
	assert.Contains(t, node1, "cp -r /opt/fab_perf/scripts/regression/osu-perf-check "+workDir)
	assert.Contains(t, node1, "echo node1 > "+workDir+"/node1_node2.hosts")
	assert.Contains(t, node1, "echo node2 >> "+workDir+"/node1_node2.hosts")
	assert.Contains(t, node1, "cd "+workDir+" && source "+MPIVars+" && ./run.sh node1_node2.hosts noturbo")
	assert.Contains(t, node1, "cd /opt/fab_perf/scripts/regression/ipostl-perf-check && ./run-ipostl.sh node2 node2-ib node1-ib "+workDir+"/IPoSTL_OUTPUT-03-14-16")
	assert.Contains(t, node1, "rm -rf "+workDir)
	assert.Contains(t, h.Exec.Commands("node2"), "rm -rf "+workDir)
	// the first ping answered, so IPoIB was left alone
	assert.Equal(t, 0, h.Exec.Count("modprobe"))
}

func TestRunFailsOnSummaryFailure(t *testing.T) {
	t.Setenv("USER", "tester")
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("no-turbo/summary", hosttest.OK(badSummary))
	script(h.Exec)

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "MPI: 1 failed measurement(s)")
	// data is kept for a failed run
	assert.Equal(t, 0, h.Exec.Count("rm -rf"))
}

func TestRunRaisesIPoIBWhenPingFails(t *testing.T) {
	t.Setenv("USER", "tester")
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("ping -c 3 -W 5 node2-ib", hosttest.Exit(1), hosttest.OK(""))
	script(h.Exec)

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Equal(t, 2, h.Exec.Count("modprobe ib_ipoib"))
	assert.Equal(t, 2, h.Exec.Count("ifup ib0"))
	assert.Len(t, h.Pauses(), 2)
}

func TestRunKeepsDataWithPerfDir(t *testing.T) {
	t.Setenv("USER", "tester")
	opts := regtesttest.Options()
	opts.PerfDir = regtesttest.SrcDir
	opts.BaseDir = "/nfs/perf"
	h := regtesttest.New(t, opts)
	h.Exec.Default = hosttest.OK("all pass\n")

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Equal(t, 0, h.Exec.Count("rm -rf"))
	assert.Contains(t, h.Exec.Commands("node1"), "cp -r /nfs/perf/scripts/regression/osu-perf-check /src/hfi/tester.201603140926")
	assert.Contains(t, h.Out.String(), "retained data in /src/hfi/tester.201603140926")
}

func TestRunNeedsDistinctHosts(t *testing.T) {
	opts := regtesttest.Options()
	opts.NodeList = "node1"
	h := regtesttest.New(t, opts)
	require.Error(t, New().Run(context.Background(), h.Env))
}
