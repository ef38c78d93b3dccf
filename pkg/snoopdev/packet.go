package snoopdev

import (
	"fmt"
)

// ICRCLen trails every packet read from the device and must be removed
// before a packet is written back.
const ICRCLen = 4

// Header is the part of the LRH the tests look at.
type Header struct {
	VL     int
	DLID   int
	PktLen int // dwords
	SLID   int
}

func ParseHeader(p []byte) (Header, error) {
	if len(p) < 8 {
		return Header{}, fmt.Errorf("short packet: %d bytes", len(p))
	}
	return Header{
		VL:     int(p[0] >> 4),
		DLID:   int(p[2])<<8 | int(p[3]),
		PktLen: int(p[5]),
		SLID:   int(p[6])<<8 | int(p[7]),
	}, nil
}

// Logged is the line a snoop listener prints per packet on exit.
func (h Header) Logged(size int) string {
	return fmt.Sprintf(".....logged %d byte pkt vl %d pktlen %d Dwords dlid %d slid %d", size, h.VL, h.PktLen, h.DLID, h.SLID)
}

// Captured is the line a capture listener prints per packet.
func (h Header) Captured(size int) string {
	return fmt.Sprintf("PacketBytes: %d VL: %d SLID: %d DLID: %d", size, h.VL, h.SLID, h.DLID)
}

func StripICRC(p []byte) []byte {
	if len(p) < ICRCLen {
		return nil
	}
	return append([]byte(nil), p[:len(p)-ICRCLen]...)
}

// CorruptDLID rewrites the low DLID byte to 'B' so the packet lands on a
// LID nobody owns.
func CorruptDLID(p []byte) ([]byte, error) {
	if len(p) < 8+ICRCLen {
		return nil, fmt.Errorf("short packet: %d bytes", len(p))
	}
	out := StripICRC(p)
	out[3] = 'B'
	return out, nil
}

// FlipLIDs turns a UD packet around: LIDs swap, and the BTH destination QP
// swaps with the DETH source QP.
func FlipLIDs(p []byte) ([]byte, error) {
	if len(p) < 28+ICRCLen {
		return nil, fmt.Errorf("short packet: %d bytes", len(p))
	}
	out := make([]byte, 0, len(p)-ICRCLen)
	out = append(out, p[0:2]...)   // VL LVer SL LNH
	out = append(out, p[6:8]...)   // SLID becomes DLID
	out = append(out, p[4:6]...)   // length
	out = append(out, p[2:4]...)   // DLID becomes SLID
	out = append(out, p[8:13]...)  // opcode, pkey, flags
	out = append(out, p[25:28]...) // source QP becomes dest QP
	out = append(out, p[16:25]...) // PSN, qkey and DETH reserved
	out = append(out, p[13:16]...) // dest QP becomes source QP
	out = append(out, p[28:len(p)-ICRCLen]...)
	return out, nil
}
