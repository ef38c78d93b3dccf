package snoopioctl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host/hosttest"
	"github.com/brevdev/hfi-regress/pkg/regtest/regtesttest"
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/snoopdev/snoopdevtest"
)

const (
	initUp   = 0x52
	armedUp  = 0x53
	activeUp = 0x54
	downPoll = 0x21
)

// healthy is a port in init that arms, activates and retrains after two
// polls.
func healthy() *snoopdevtest.Conn {
	conn := snoopdevtest.New()
	conn.State = initUp
	conn.Transitions[0x23] = armedUp
	conn.Transitions[0x24] = activeUp
	conn.Extra = []uint8{downPoll, initUp}
	return conn
}

func localTest(t *testing.T, conn *snoopdevtest.Conn) (Test, *regtesttest.Harness) {
	t.Helper()
	opts := regtesttest.Options()
	opts.Args = LocalArg
	h := regtesttest.New(t, opts)
	return Test{Open: func(path string, _ int) (*snoopdev.Device, error) {
		return snoopdev.NewDevice(path, conn), nil
	}}, h
}

func TestLocalCycle(t *testing.T) {
	conn := healthy()
	test, h := localTest(t, conn)

	require.NoError(t, test.Run(context.Background(), h.Env))

	var sets []int
	for _, io := range conn.Ioctls() {
		if io.Req == snoopdev.IoctlSetLinkStateExtra {
			sets = append(sets, io.Value)
		}
	}
	assert.Equal(t, []int{0x23, 0x24, 0x21}, sets)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.Pauses())

	reqs := conn.Requests()
	require.GreaterOrEqual(t, len(reqs), 8)
	assert.Equal(t, []uint{
		snoopdev.IoctlGetVersion,
		snoopdev.IoctlClearFilter, snoopdev.IoctlClearQueue,
		snoopdev.IoctlSetFilter, snoopdev.IoctlClearFilter,
		snoopdev.IoctlSetFilter, snoopdev.IoctlClearFilter,
		snoopdev.IoctlSetOpts,
	}, reqs[:8])
	assert.Contains(t, h.Out.String(), "PASS: ")
}

func TestLocalBringsActiveLinkDownFirst(t *testing.T) {
	conn := healthy()
	conn.State = activeUp
	conn.Extra = []uint8{initUp, downPoll, initUp}
	test, h := localTest(t, conn)

	require.NoError(t, test.Run(context.Background(), h.Env))
	assert.Equal(t, 2, count(conn, snoopdev.IoctlSetLinkStateExtra, 0x21))
}

func TestLocalRefusesLinkOutsideInit(t *testing.T) {
	conn := healthy()
	conn.State = downPoll
	test, h := localTest(t, conn)

	err := test.Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "not in init state")
	assert.Equal(t, 0, count(conn, snoopdev.IoctlSetLinkStateExtra, 0x23))
}

func TestLocalFailsWhenArmIgnored(t *testing.T) {
	conn := healthy()
	conn.Transitions[0x23] = initUp
	test, h := localTest(t, conn)

	err := test.Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bring link to WFR_LSTATE_ARMED")
}

func TestLocalGivesUpPolling(t *testing.T) {
	conn := healthy()
	conn.Extra = nil
	test, h := localTest(t, conn)

	err := test.Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still polling")
	assert.Len(t, h.Pauses(), PollAttempts)
}

func TestRemoteRunsLocalCycleAsRoot(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Equal(t, []string{regtesttest.Self + " test SnoopIoctl --device hfi1_0 --args local"}, h.Exec.Commands("node1"))
	assert.Empty(t, h.Exec.Commands("node2"))
}

func TestRemoteFailure(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("test SnoopIoctl", hosttest.Exit(1))

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SnoopIoctl on node1 exited 1")
}

func count(conn *snoopdevtest.Conn, req uint, value int) int {
	n := 0
	for _, io := range conn.Ioctls() {
		if io.Req == req && io.Value == value {
			n++
		}
	}
	return n
}
