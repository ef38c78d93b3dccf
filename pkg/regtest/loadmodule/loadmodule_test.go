package loadmodule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host/hosttest"
	"github.com/brevdev/hfi-regress/pkg/regtest/regtesttest"
)

const (
	lsmodLoaded = "Module                  Size  Used by\nhfi                   421337  0\nib_core                88000  1 hfi\n"
	smStopped   = "opensm is stopped"
	smRunning   = "opensm (pid 4242) is running..."
	portActive  = "LinkState:.......................Active"
	portDown    = "LinkState:.......................Down"
)

func script(e *hosttest.Executor) {
	e.On("/sbin/lsmod", hosttest.OK(lsmodLoaded)).
		On("/sbin/rmmod", hosttest.OK("")).
		On("/sbin/insmod", hosttest.OK("")).
		On("ibportstate", hosttest.OK(portActive))
}

func TestLoadRestartsRunningSM(t *testing.T) {
	opts := regtesttest.Options()
	opts.ModParams = "p1=1:p1=2"
	h := regtesttest.New(t, opts)
	h.Exec.On("/sbin/rmmod", hosttest.Exit(1), hosttest.OK(""))
	h.Exec.On("opensm status", hosttest.OK(smStopped), hosttest.OK(smRunning))
	script(h.Exec)

	require.NoError(t, New().Run(context.Background(), h.Env))

	node1 := h.Exec.Commands("node1")
	node2 := h.Exec.Commands("node2")
	assert.Contains(t, node1, "/sbin/insmod /src/hfi/hfi.ko p1=1")
	assert.Contains(t, node2, "/sbin/insmod /src/hfi/hfi.ko p1=2")
	assert.Contains(t, node2, "/sbin/service opensm restart")
	assert.NotContains(t, node1, "/sbin/service opensm restart")
	// one failed rmmod retried after the first backoff step
	assert.Equal(t, 3, h.Exec.Count("/sbin/rmmod hfi"))
	assert.Equal(t, []time.Duration{time.Second}, h.Pauses())
	assert.Contains(t, h.Out.String(), "PASS: ")
}

func TestLoadStartsSMWhenNoneRunning(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("opensm status", hosttest.OK(smStopped))
	script(h.Exec)

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Contains(t, h.Exec.Commands("node1"), "/sbin/service opensm start")
	assert.Equal(t, 0, h.Exec.Count("opensm restart"))
}

func TestLoadFailsWithTwoSMs(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("opensm status", hosttest.OK(smRunning))
	script(h.Exec)

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "more than one host")
}

func TestLoadLeavesRemoteSMAlone(t *testing.T) {
	opts := regtesttest.Options()
	opts.SM = "remote"
	h := regtesttest.New(t, opts)
	script(h.Exec)

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Equal(t, 0, h.Exec.Count("/sbin/service"))
}

func TestLoadFailsWhenLinksStayDown(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("opensm status", hosttest.OK(smStopped), hosttest.OK(smRunning))
	h.Exec.On("ibportstate", hosttest.OK(portDown))
	script(h.Exec)

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node1, node2")
	// two rounds of two polls per host
	assert.Equal(t, 8, h.Exec.Count("ibportstate"))
	assert.Equal(t, 2, h.Exec.Count("opensm restart"))
}

func TestReloadOverridesParams(t *testing.T) {
	opts := regtesttest.Options()
	opts.SM = "none"
	h := regtesttest.New(t, opts)
	script(h.Exec)

	require.NoError(t, Reload(context.Background(), h.Env, "snoop_enable=1 snoop_drop_send=1"))
	assert.Equal(t, 2, h.Exec.Count("/sbin/insmod /src/hfi/hfi.ko snoop_enable=1 snoop_drop_send=1"))
}

func TestReloadRejectsBadSegments(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	err := Reload(context.Background(), h.Env, "a=1:b=2:c=3")
	var cerr breverrors.ConfigError
	assert.ErrorAs(t, err, &cerr)
}
