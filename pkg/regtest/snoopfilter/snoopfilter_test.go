package snoopfilter

import (
	"context"
	"errors"
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

func TestPacketIsMarked(t *testing.T) {
	p := Packet()
	require.Len(t, p, PacketLen)
	assert.False(t, Marked(p), "a packet without ICRC is not what the device returns")

	read := append(Packet(), 0, 0, 0, 0)
	assert.True(t, Marked(read))
	read[105] = 0
	assert.False(t, Marked(read))
	assert.False(t, Marked(snoopdevtest.Packet(1, 2)))

	h, err := snoopdev.ParseHeader(append(Packet(), 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, h.DLID)
	assert.Equal(t, 1, h.SLID)
}

func TestCasesCoverEveryFilterKind(t *testing.T) {
	require.Len(t, Cases, snoopdev.FilterByPKey+1)
	for i, c := range Cases {
		assert.Equal(t, i, c.By)
		assert.NotEqual(t, c.Good, c.Bad, "%s", c)
		assert.Less(t, c.Offset, PacketLen)
	}
	pkey, ok := caseFor(snoopdev.FilterByPKey)
	require.True(t, ok)
	assert.Equal(t, 0x7F11, pkey.FilterValue())
	qp, ok := caseFor(snoopdev.FilterByQP)
	require.True(t, ok)
	assert.Equal(t, 0xFF, qp.FilterValue())
	assert.Equal(t, "PACKET_TYPE", Cases[snoopdev.FilterByPacketType].String())
}

// received is p as the device hands it back, with the field under test set
// and an ICRC appended.
func received(c Case, v byte) []byte {
	p := Packet()
	p[c.Offset] = v
	return append(p, 0xde, 0xad, 0xbe, 0xef)
}

func localWith(conn *snoopdevtest.Conn) Local {
	return Local{Open: func(path string, _ int) (*snoopdev.Device, error) {
		return snoopdev.NewDevice(path, conn), nil
	}}
}

func TestLocalServerWritesBadThenGood(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x5,server"
	h := regtesttest.New(t, opts)
	conn := snoopdevtest.New()

	require.NoError(t, localWith(conn).Run(context.Background(), h.Env))

	sl := Cases[snoopdev.FilterBySL]
	written := conn.Written()
	require.Len(t, written, 4)
	for i, p := range written {
		assert.Len(t, p, PacketLen)
		want := sl.Bad
		if i%2 == 1 {
			want = sl.Good
		}
		assert.Equal(t, want, p[sl.Offset], "packet %d", i)
	}
	assert.Empty(t, conn.Ioctls())
	assert.Contains(t, h.Out.String(), "Wrote packet of 284 bytes")
}

func TestLocalClientSetsFilterAndWaitsForGoodPackets(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "6,client"
	h := regtesttest.New(t, opts)
	pkey := Cases[snoopdev.FilterByPKey]
	conn := snoopdevtest.New()
	conn.Packets = [][]byte{
		snoopdevtest.Packet(3, 4),
		received(pkey, pkey.Good),
		snoopdevtest.Packet(3, 4),
		received(pkey, pkey.Good),
	}

	require.NoError(t, localWith(conn).Run(context.Background(), h.Env))

	ioctls := conn.Ioctls()
	require.Len(t, ioctls, 3)
	assert.Equal(t, uint(snoopdev.IoctlClearFilter), ioctls[0].Req)
	assert.Equal(t, uint(snoopdev.IoctlClearQueue), ioctls[1].Req)
	assert.Equal(t, snoopdev.FilterByPKey, ioctls[2].Opcode)
	assert.Equal(t, 0x7F11, ioctls[2].Value)
	assert.Empty(t, conn.Written())
	assert.Contains(t, h.Out.String(), "Setting special filter value 0x7f11")
	assert.Contains(t, h.Out.String(), "PASS: ")
}

func TestLocalClientFailsOnFilteredValue(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x0,client"
	h := regtesttest.New(t, opts)
	slid := Cases[snoopdev.FilterBySLID]
	conn := snoopdevtest.New()
	conn.Packets = [][]byte{received(slid, slid.Good), received(slid, slid.Bad)}

	err := localWith(conn).Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "got wrong packet: byte 7 is 0x1")
}

func TestLocalClientStopsWhenCancelled(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x3,client"
	h := regtesttest.New(t, opts)
	qp := Cases[snoopdev.FilterByQP]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := snoopdevtest.New()
	conn.Packets = [][]byte{received(qp, qp.Good)}
	conn.OnDrain = cancel

	err := localWith(conn).Run(ctx, h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "stopped before 2 filtered packets arrived")
}

func TestLocalRejectsBadArgs(t *testing.T) {
	for _, args := range []string{"", "0x1", "zz,client", "0x9,server"} {
		opts := regtesttest.Options()
		opts.Args = args
		h := regtesttest.New(t, opts)
		err := NewLocal().Run(context.Background(), h.Env)
		var cerr breverrors.ConfigError
		assert.ErrorAs(t, err, &cerr, "args %q", args)
	}

	opts := regtesttest.Options()
	opts.Args = "0x1,both"
	h := regtesttest.New(t, opts)
	err := NewLocal().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not specify server or client")
}

func TestLocalFailsWithoutDevice(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x1,client"
	h := regtesttest.New(t, opts)
	local := Local{Open: func(string, int) (*snoopdev.Device, error) { return nil, errors.New("ENOENT") }}

	err := local.Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
}

func TestRunEveryFilterKind(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On(",client", hosttest.OK("PASS: Completed!"))
	h.Exec.On(",server", hosttest.OK("Wrote packet of 284 bytes"))

	require.NoError(t, New().Run(context.Background(), h.Env))

	assert.Equal(t, len(Cases), h.Exec.Count(",client"))
	assert.Equal(t, len(Cases), h.Exec.Count(",server"))
	assert.Contains(t, h.Exec.Commands("node2"), regtesttest.Self+" test SnoopFilterLocal --device hfi1_0 --args 0x6,client")
	assert.Contains(t, h.Exec.Commands("node1"), regtesttest.Self+" test SnoopFilterLocal --device hfi1_0 --args 0x0,server")
	assert.Equal(t, 0, h.Exec.Count("pkill"))
	assert.Len(t, h.Pauses(), len(Cases))
	assert.Contains(t, h.Out.String(), "PKEY filter passed")
	assert.Contains(t, h.Out.String(), "PASS: ")
}

func TestRunSelectedKinds(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x4,5"
	h := regtesttest.New(t, opts)

	require.NoError(t, New().Run(context.Background(), h.Env))
	assert.Equal(t, 2, h.Exec.Count(",client"))
	assert.Equal(t, 1, h.Exec.Count("--args 0x4,client"))
	assert.Equal(t, 1, h.Exec.Count("--args 0x5,client"))
}

func TestRunKeepsGoingAfterAFailedKind(t *testing.T) {
	h := regtesttest.New(t, regtesttest.Options())
	h.Exec.On("0x2,server", hosttest.Reply{Output: "FAIL: failed to write packet\n", Status: 1})

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Equal(t, 1, breverrors.ExitCode(err))
	assert.Contains(t, err.Error(), "1 of 7 filters failed")
	assert.Contains(t, err.Error(), "MAD: server on node1 exited 1")
	assert.Equal(t, len(Cases), h.Exec.Count(",client"))
	assert.Equal(t, 1, h.Exec.Count("pkill -INT -f 'test SnoopFilterLocal'"))
}

func TestRunStopsAHungClient(t *testing.T) {
	old := ClientTimeout
	ClientTimeout = 10 * time.Millisecond
	defer func() { ClientTimeout = old }()

	opts := regtesttest.Options()
	opts.Args = "0x1"
	h := regtesttest.New(t, opts)
	stopped := make(chan struct{})
	h.Exec.On(",client", hosttest.Reply{Block: stopped})
	h.Exec.On("pkill -INT -f 'test SnoopFilterLocal'", hosttest.Reply{Do: func() { close(stopped) }})

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DLID: client on node2 saw no filtered packets")
	assert.Equal(t, 1, h.Exec.Count("pkill"))
}

func TestRunRejectsUnknownKind(t *testing.T) {
	opts := regtesttest.Options()
	opts.Args = "0x7"
	h := regtesttest.New(t, opts)

	err := New().Run(context.Background(), h.Env)
	var cerr breverrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, h.Exec.Count(",client"))
}

func TestRunNeedsTwoHosts(t *testing.T) {
	opts := regtesttest.Options()
	opts.NodeList = "node1"
	h := regtesttest.New(t, opts)

	err := New().Run(context.Background(), h.Env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 2 hosts")
	assert.Empty(t, h.Exec.Calls())
}
