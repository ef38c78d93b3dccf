package snoopfilter

import (
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
)

// PacketLen is what the server writes. Reads carry the ICRC on top.
const PacketLen = 284

// markers make the test's own packets easy to pick out of other traffic.
var markers = map[int]byte{100: 0x1, 105: 0x2, 106: 0x3}

// Packet is a UD send from LID 1 to LID 2 with the marker payload and no
// ICRC.
func Packet() []byte {
	p := make([]byte, PacketLen)
	p[0] = 0xF0 // VL, LVer
	p[1] = 0x02 // LNH
	p[3] = 0x02 // DLID
	p[5] = 0x48 // length in dwords
	p[7] = 0x01 // SLID
	p[8] = 0x64 // BTH opcode, UD send only
	p[10], p[11] = 0xff, 0xff
	p[27] = 0xaa // DETH source QP
	for off, b := range markers {
		p[off] = b
	}
	return p
}

// Marked reports whether p is one of the packets Packet builds, as read
// back from the device.
func Marked(p []byte) bool {
	if len(p) != PacketLen+snoopdev.ICRCLen {
		return false
	}
	for off, b := range markers {
		if p[off] != b {
			return false
		}
	}
	return true
}

// Case is one filter kind: the header byte it keys on and a value that
// passes and one that must not.
type Case struct {
	By     int
	Offset int
	Good   byte
	Bad    byte
	// Value goes to SET_FILTER instead of Good when the driver matches on
	// its own encoding of the field.
	Value int
}

func (c Case) FilterValue() int {
	if c.Value != 0 {
		return c.Value
	}
	return int(c.Good)
}

func (c Case) String() string {
	return snoopdev.FilterName(c.By)
}

// Cases covers every filter kind, in opcode order.
var Cases = []Case{
	{By: snoopdev.FilterBySLID, Offset: 7, Good: 0x5, Bad: 0x1},
	{By: snoopdev.FilterByDLID, Offset: 3, Good: 0x5, Bad: 0x1, Value: 0x5},
	{By: snoopdev.FilterByMAD, Offset: 29, Good: 0x10, Bad: 0x0},
	{By: snoopdev.FilterByQP, Offset: 15, Good: 0xFF, Bad: 0x0},
	{By: snoopdev.FilterByPacketType, Offset: 8, Good: 0x64, Bad: 0x00, Value: 0x3},
	{By: snoopdev.FilterBySL, Offset: 1, Good: 0x12, Bad: 0x2, Value: 0x1},
	{By: snoopdev.FilterByPKey, Offset: 11, Good: 0x11, Bad: 0xFF, Value: 0x7F11},
}

func caseFor(by int) (Case, bool) {
	for _, c := range Cases {
		if c.By == by {
			return c, true
		}
	}
	return Case{}, false
}
