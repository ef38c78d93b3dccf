// Package snoopdev speaks the ioctl protocol of the HFI diagpkt character
// device used to snoop, capture and filter packets and to drive the port
// link state from user space.
package snoopdev

import (
	"fmt"
	"os"
	"strings"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

const (
	IoctlGetLinkState      uint = 7040
	IoctlClearQueue        uint = 7042
	IoctlClearFilter       uint = 7043
	IoctlSetFilter         uint = 7044
	IoctlGetVersion        uint = 7045
	IoctlSetOpts           uint = 7046
	IoctlGetLinkStateExtra uint = 3225426822
	IoctlSetLinkStateExtra uint = 3225426823
)

// Filter kinds, as SET_FILTER opcodes.
const (
	FilterBySLID       = 0
	FilterByDLID       = 1
	FilterByMAD        = 2
	FilterByQP         = 3
	FilterByPacketType = 4
	FilterBySL         = 5
	FilterByPKey       = 6
)

var filterNames = []string{"SLID", "DLID", "MAD", "QP", "PACKET_TYPE", "SL", "PKEY"}

// FilterName is the kind's name, or its number when unknown.
func FilterName(by int) string {
	if by < 0 || by >= len(filterNames) {
		return fmt.Sprintf("filter(%d)", by)
	}
	return filterNames[by]
}

const (
	// ModeSnoop intercepts packets so they can be dropped or reinjected.
	ModeSnoop = os.O_RDWR
	// ModeCapture only copies packets out.
	ModeCapture = os.O_RDONLY
)

// PacketSize fits a 4K MTU packet with headers.
const PacketSize = 5000

const CompatPath = "/dev/hfi_diagpkt0"

// Conn is the raw device. Device is the only production implementation.
type Conn interface {
	IoctlGetInt(req uint) (int, error)
	IoctlSetPointerInt(req uint, value int) error
	// IoctlFilter passes a filter record that points at value.
	IoctlFilter(req uint, opcode int, value int) error
	// IoctlBuffer passes buf in and reads the driver's reply back into it.
	IoctlBuffer(req uint, buf []byte) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DevicePath maps an ib device name such as hfi1_0 to its diagpkt node.
func DevicePath(device string) string {
	i := strings.LastIndex(device, "_")
	if i <= 0 || i == len(device)-1 {
		return CompatPath
	}
	unit := device[i+1:]
	for _, c := range unit {
		if c < '0' || c > '9' {
			return CompatPath
		}
	}
	return fmt.Sprintf("/dev/%s_diagpkt%s", device[:i], unit)
}

type OpenFunc func(path string, mode int) (*Device, error)

// OpenDevice opens the node for an ib device, falling back to the compat
// node older drivers create.
func OpenDevice(open OpenFunc, device string, mode int) (*Device, error) {
	path := DevicePath(device)
	dev, err := open(path, mode)
	if err == nil || path == CompatPath {
		return dev, err
	}
	if compat, cerr := open(CompatPath, mode); cerr == nil {
		return compat, nil
	}
	return nil, err
}

// Device is an open diagpkt node.
type Device struct {
	Path string
	conn Conn
}

func NewDevice(path string, conn Conn) *Device {
	return &Device{Path: path, conn: conn}
}

func (d *Device) Version() (int, error) {
	v, err := d.conn.IoctlGetInt(IoctlGetVersion)
	if err != nil {
		return 0, breverrors.WrapAndTrace(err, "GET_VERSION")
	}
	return v, nil
}

// PortState is the short GET_LINK_STATE query.
func (d *Device) PortState() (PortState, error) {
	v, err := d.conn.IoctlGetInt(IoctlGetLinkState)
	if err != nil {
		return PortState{}, breverrors.WrapAndTrace(err, "GET_LINK_STATE")
	}
	return Decode(uint32(v))
}

// LinkInfo is the GET_LINK_STATE_EXTRA query.
func (d *Device) LinkInfo() (LinkInfo, error) {
	buf := make([]byte, LinkInfoSize)
	if err := d.conn.IoctlBuffer(IoctlGetLinkStateExtra, buf); err != nil {
		return LinkInfo{}, breverrors.WrapAndTrace(err, "GET_LINK_STATE_EXTRA")
	}
	return ParseLinkInfo(buf)
}

// SetPortState requests s and returns the state the driver reports back.
func (d *Device) SetPortState(s PortState) (LinkInfo, error) {
	buf := LinkInfo{PortState: s.Encode()}.Marshal()
	if err := d.conn.IoctlBuffer(IoctlSetLinkStateExtra, buf); err != nil {
		return LinkInfo{}, breverrors.WrapAndTrace(err, "SET_LINK_STATE_EXTRA "+s.String())
	}
	return ParseLinkInfo(buf)
}

func (d *Device) ClearFilter() error {
	return breverrors.WrapAndTrace(d.conn.IoctlSetPointerInt(IoctlClearFilter, 0), "CLEAR_FILTER")
}

func (d *Device) ClearQueue() error {
	return breverrors.WrapAndTrace(d.conn.IoctlSetPointerInt(IoctlClearQueue, 0), "CLEAR_QUEUE")
}

// SetFilter keeps only packets whose field of kind by equals value. The
// driver compares some kinds against its own encoding rather than the raw
// header byte, so value is not always what the packet carries.
func (d *Device) SetFilter(by int, value int) error {
	if by < FilterBySLID || by > FilterByPKey {
		return fmt.Errorf("unknown filter %d", by)
	}
	return breverrors.WrapAndTrace(d.conn.IoctlFilter(IoctlSetFilter, by, value), "SET_FILTER")
}

// SetOptions toggles dropping of outgoing packets the driver hands to the
// snoop queue.
func (d *Device) SetOptions(dropSend bool) error {
	v := 0
	if dropSend {
		v = 1
	}
	return breverrors.WrapAndTrace(d.conn.IoctlSetPointerInt(IoctlSetOpts, v), "SET_OPTS")
}

// ReadPacket blocks for the next packet, ICRC included.
func (d *Device) ReadPacket() ([]byte, error) {
	buf := make([]byte, PacketSize)
	n, err := d.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (d *Device) WritePacket(p []byte) (int, error) {
	return d.conn.Write(p)
}

func (d *Device) Close() error {
	return d.conn.Close()
}
