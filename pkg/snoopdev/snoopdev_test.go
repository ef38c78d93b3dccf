package snoopdev_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/snoopdev/snoopdevtest"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		val     uint32
		want    string
		active  bool
		polling bool
		wantErr bool
	}{
		{val: 0x54, want: "WFR_LSTATE_ACTIVE|IB_PORTPHYSSTATE_LINKUP", active: true},
		{val: 0x52, want: "WFR_LSTATE_INIT|IB_PORTPHYSSTATE_LINKUP"},
		{val: 0x21, want: "WFR_LSTATE_DOWN|IB_PORTPHYSSTATE_POLL", polling: true},
		{val: 0x00, wantErr: true},
		{val: 0x85, wantErr: true},
	}
	for _, tt := range tests {
		s, err := snoopdev.Decode(tt.val)
		if tt.wantErr {
			assert.Error(t, err, "0x%x", tt.val)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.String())
		assert.Equal(t, tt.active, s.Active())
		assert.Equal(t, tt.polling, s.Polling())
		assert.Equal(t, uint8(tt.val), s.Encode())
	}
}

func TestLinkInfoLayout(t *testing.T) {
	li := snoopdev.LinkInfo{NodeGUID: 0x0011750101670001, PortMode: 1, PortState: 0x54, LinkSpeed: 0x0100, LinkWidth: 0x0008, PortNumber: 1}
	b := li.Marshal()
	require.Len(t, b, snoopdev.LinkInfoSize)
	assert.Equal(t, []byte{0x00, 0x11, 0x75, 0x01, 0x01, 0x67, 0x00, 0x01}, b[:8])
	assert.Equal(t, byte(0x54), b[9])
	assert.Equal(t, []byte{0x01, 0x00}, b[10:12])

	got, err := snoopdev.ParseLinkInfo(b)
	require.NoError(t, err)
	if diff := cmp.Diff(li, got); diff != "" {
		t.Errorf("ParseLinkInfo mismatch (-want +got):\n%s", diff)
	}
	_, err = snoopdev.ParseLinkInfo(b[:10])
	assert.Error(t, err)
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/hfi1_diagpkt0", snoopdev.DevicePath("hfi1_0"))
	assert.Equal(t, "/dev/qib_diagpkt1", snoopdev.DevicePath("qib_1"))
	assert.Equal(t, snoopdev.CompatPath, snoopdev.DevicePath("hfi1"))
	assert.Equal(t, snoopdev.CompatPath, snoopdev.DevicePath("hfi1_x"))
}

func TestDeviceFilterAndOptions(t *testing.T) {
	conn := snoopdevtest.New()
	dev := snoopdev.NewDevice("/dev/hfi1_diagpkt0", conn)

	require.NoError(t, dev.ClearFilter())
	require.NoError(t, dev.ClearQueue())
	require.NoError(t, dev.SetFilter(snoopdev.FilterByDLID, 2))
	require.NoError(t, dev.SetOptions(true))
	assert.Error(t, dev.SetFilter(7, 2))

	want := []snoopdevtest.Ioctl{
		{Req: snoopdev.IoctlClearFilter},
		{Req: snoopdev.IoctlClearQueue},
		{Req: snoopdev.IoctlSetFilter, Opcode: snoopdev.FilterByDLID, Value: 2},
		{Req: snoopdev.IoctlSetOpts, Value: 1},
	}
	if diff := cmp.Diff(want, conn.Ioctls()); diff != "" {
		t.Errorf("ioctls mismatch (-want +got):\n%s", diff)
	}
}

func TestDeviceFilterKinds(t *testing.T) {
	conn := snoopdevtest.New()
	dev := snoopdev.NewDevice("/dev/hfi1_diagpkt0", conn)

	for by := snoopdev.FilterBySLID; by <= snoopdev.FilterByPKey; by++ {
		require.NoError(t, dev.SetFilter(by, 0x7F11), snoopdev.FilterName(by))
	}
	assert.Error(t, dev.SetFilter(-1, 1))
	assert.Len(t, conn.Ioctls(), 7)
	assert.Equal(t, snoopdev.FilterByPKey, conn.Ioctls()[6].Opcode)
	assert.Equal(t, 0x7F11, conn.Ioctls()[6].Value)

	assert.Equal(t, "PACKET_TYPE", snoopdev.FilterName(snoopdev.FilterByPacketType))
	assert.Equal(t, "filter(9)", snoopdev.FilterName(9))
}

func TestDeviceLinkState(t *testing.T) {
	conn := snoopdevtest.New()
	conn.State = 0x52
	conn.Transitions[0x21] = 0x21
	dev := snoopdev.NewDevice("/dev/hfi1_diagpkt0", conn)

	v, err := dev.Version()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	s, err := dev.PortState()
	require.NoError(t, err)
	assert.True(t, s.Init())

	li, err := dev.SetPortState(snoopdev.PortState{Link: snoopdev.LinkArmed, Phys: snoopdev.PhysPoll})
	require.NoError(t, err)
	s, err = li.State()
	require.NoError(t, err)
	assert.Equal(t, snoopdev.LinkArmed, s.Link)

	conn.Fail[snoopdev.IoctlGetLinkStateExtra] = errors.New("EIO")
	_, err = dev.LinkInfo()
	assert.ErrorContains(t, err, "GET_LINK_STATE_EXTRA")
}

func TestPacketHelpers(t *testing.T) {
	p := snoopdevtest.Packet(2, 1)
	h, err := snoopdev.ParseHeader(p)
	require.NoError(t, err)
	assert.Equal(t, snoopdev.Header{VL: 0, DLID: 1, PktLen: 9, SLID: 2}, h)
	assert.Equal(t, ".....logged 36 byte pkt vl 0 pktlen 9 Dwords dlid 1 slid 2", h.Logged(len(p)))
	assert.Equal(t, "PacketBytes: 36 VL: 0 SLID: 2 DLID: 1", h.Captured(len(p)))

	assert.Len(t, snoopdev.StripICRC(p), 32)

	bad, err := snoopdev.CorruptDLID(p)
	require.NoError(t, err)
	assert.Equal(t, byte('B'), bad[3])
	assert.Len(t, bad, 32)

	flipped, err := snoopdev.FlipLIDs(p)
	require.NoError(t, err)
	require.Len(t, flipped, 32)
	fh, err := snoopdev.ParseHeader(flipped)
	require.NoError(t, err)
	assert.Equal(t, 2, fh.DLID)
	assert.Equal(t, 1, fh.SLID)
	assert.Equal(t, byte(0x22), flipped[15])
	assert.Equal(t, byte(0x11), flipped[27])
	assert.Equal(t, byte(0xab), flipped[28])

	_, err = snoopdev.FlipLIDs(p[:20])
	assert.Error(t, err)
	_, err = snoopdev.ParseHeader(p[:4])
	assert.Error(t, err)
}
