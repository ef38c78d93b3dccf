package snoopdev

import (
	"encoding/binary"
	"fmt"
)

// LinkState is the logical port state in the low nibble of a state value.
type LinkState uint8

const (
	LinkDown   LinkState = 1
	LinkInit   LinkState = 2
	LinkArmed  LinkState = 3
	LinkActive LinkState = 4
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "WFR_LSTATE_DOWN"
	case LinkInit:
		return "WFR_LSTATE_INIT"
	case LinkArmed:
		return "WFR_LSTATE_ARMED"
	case LinkActive:
		return "WFR_LSTATE_ACTIVE"
	}
	return fmt.Sprintf("LinkState(%d)", uint8(s))
}

// PhysState is the physical port state in the second nibble.
type PhysState uint8

const (
	PhysNoChange PhysState = iota
	PhysSleep
	PhysPoll
	PhysDisabled
	PhysCfgTrain
	PhysLinkUp
	PhysLinkErrRecover
	PhysPhyTest
)

var physNames = [...]string{
	"IB_PORTPHYSSTATE_NO_CHANGE",
	"IB_PORTPHYSSTATE_SLEEP",
	"IB_PORTPHYSSTATE_POLL",
	"IB_PORTPHYSSTATE_DISABLED",
	"IB_PORTPHYSSTATE_CFG_TRAIN",
	"IB_PORTPHYSSTATE_LINKUP",
	"IB_PORTPHYSSTATE_LINK_ERR_RECOVER",
	"IB_PORTPHYSSTATE_PHY_TEST",
}

func (s PhysState) String() string {
	if int(s) < len(physNames) {
		return physNames[s]
	}
	return fmt.Sprintf("PhysState(%d)", uint8(s))
}

type PortState struct {
	Link LinkState
	Phys PhysState
}

// Decode splits a driver state value. Values outside the known states are
// an error.
func Decode(val uint32) (PortState, error) {
	link := LinkState(val & 0xf)
	phys := PhysState((val >> 4) & 0xf)
	if link < LinkDown || link > LinkActive {
		return PortState{}, fmt.Errorf("unknown link state %d in 0x%x", uint8(link), val)
	}
	if int(phys) >= len(physNames) {
		return PortState{}, fmt.Errorf("unknown phys state %d in 0x%x", uint8(phys), val)
	}
	return PortState{Link: link, Phys: phys}, nil
}

func (s PortState) Encode() uint8 {
	return uint8(s.Phys)<<4 | uint8(s.Link)
}

func (s PortState) String() string {
	return s.Link.String() + "|" + s.Phys.String()
}

func (s PortState) Active() bool { return s.Link == LinkActive && s.Phys == PhysLinkUp }
func (s PortState) Init() bool   { return s.Link == LinkInit && s.Phys == PhysLinkUp }
func (s PortState) Armed() bool  { return s.Link == LinkArmed && s.Phys == PhysLinkUp }
func (s PortState) Down() bool   { return s.Link == LinkDown && s.Phys == PhysLinkUp }

// Polling is a downed link that is training again.
func (s PortState) Polling() bool { return s.Link == LinkDown && s.Phys == PhysPoll }

// LinkInfoSize is a full SMP payload.
const LinkInfoSize = 64

// LinkInfo is the record exchanged by the *_LINK_STATE_EXTRA ioctls. The
// multi-byte fields are big endian except the port number.
type LinkInfo struct {
	NodeGUID   uint64
	PortMode   uint8
	PortState  uint8
	LinkSpeed  uint16
	LinkWidth  uint16
	VL15Init   uint16
	PortNumber uint16
}

func (li LinkInfo) Marshal() []byte {
	b := make([]byte, LinkInfoSize)
	binary.BigEndian.PutUint64(b[0:], li.NodeGUID)
	b[8] = li.PortMode
	b[9] = li.PortState
	binary.BigEndian.PutUint16(b[10:], li.LinkSpeed)
	binary.BigEndian.PutUint16(b[12:], li.LinkWidth)
	binary.BigEndian.PutUint16(b[14:], li.VL15Init)
	binary.NativeEndian.PutUint16(b[16:], li.PortNumber)
	return b
}

func ParseLinkInfo(b []byte) (LinkInfo, error) {
	if len(b) < LinkInfoSize {
		return LinkInfo{}, fmt.Errorf("short link info: %d bytes", len(b))
	}
	return LinkInfo{
		NodeGUID:   binary.BigEndian.Uint64(b[0:]),
		PortMode:   b[8],
		PortState:  b[9],
		LinkSpeed:  binary.BigEndian.Uint16(b[10:]),
		LinkWidth:  binary.BigEndian.Uint16(b[12:]),
		VL15Init:   binary.BigEndian.Uint16(b[14:]),
		PortNumber: binary.NativeEndian.Uint16(b[16:]),
	}, nil
}

func (li LinkInfo) State() (PortState, error) {
	return Decode(uint32(li.PortState))
}

func (li LinkInfo) String() string {
	return fmt.Sprintf("GUID %016x port mode %d state 0x%02x speed 0x%04x width 0x%04x",
		li.NodeGUID, li.PortMode, li.PortState, li.LinkSpeed, li.LinkWidth)
}
