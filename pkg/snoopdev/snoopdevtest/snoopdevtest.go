// Package snoopdevtest fakes a diagpkt device in memory.
package snoopdevtest

import (
	"os"
	"sync"

	"github.com/brevdev/hfi-regress/pkg/snoopdev"
)

type Ioctl struct {
	Req   uint
	Value int
	// Opcode is set for filter records.
	Opcode int
}

// Conn implements snoopdev.Conn. The zero value is not usable, use New.
type Conn struct {
	Version int
	// State answers GET_LINK_STATE and tracks every state change.
	State uint8
	// Extra answers successive GET_LINK_STATE_EXTRA calls before State
	// takes over.
	Extra []uint8
	// Transitions is what the driver reports for a requested state, when
	// that differs from the request.
	Transitions map[uint8]uint8
	// Fail makes the given request return the error.
	Fail map[uint]error
	// Packets are handed out by Read in order.
	Packets [][]byte
	// OnDrain runs once, from the reader, when Packets is exhausted.
	OnDrain func()

	mu      sync.Mutex
	ioctls  []Ioctl
	written [][]byte
	drained bool
	closed  chan struct{}
	once    sync.Once
}

var _ snoopdev.Conn = (*Conn)(nil)

func New() *Conn {
	return &Conn{
		Version:     1,
		Transitions: map[uint8]uint8{},
		Fail:        map[uint]error{},
		closed:      make(chan struct{}),
	}
}

func (c *Conn) record(io Ioctl) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ioctls = append(c.ioctls, io)
	return c.Fail[io.Req]
}

func (c *Conn) IoctlGetInt(req uint) (int, error) {
	if err := c.record(Ioctl{Req: req}); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch req {
	case snoopdev.IoctlGetVersion:
		return c.Version, nil
	case snoopdev.IoctlGetLinkState:
		return int(c.State), nil
	}
	return 0, nil
}

func (c *Conn) IoctlSetPointerInt(req uint, value int) error {
	return c.record(Ioctl{Req: req, Value: value})
}

func (c *Conn) IoctlFilter(req uint, opcode int, value int) error {
	return c.record(Ioctl{Req: req, Opcode: opcode, Value: value})
}

func (c *Conn) IoctlBuffer(req uint, buf []byte) error {
	if err := c.record(Ioctl{Req: req, Value: int(buf[9])}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch req {
	case snoopdev.IoctlSetLinkStateExtra:
		got, ok := c.Transitions[buf[9]]
		if !ok {
			got = buf[9]
		}
		c.State = got
	case snoopdev.IoctlGetLinkStateExtra:
		if len(c.Extra) > 0 {
			c.State = c.Extra[0]
			c.Extra = c.Extra[1:]
		}
	}
	buf[9] = c.State
	return nil
}

func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if len(c.Packets) > 0 {
		pkt := c.Packets[0]
		c.Packets = c.Packets[1:]
		c.mu.Unlock()
		return copy(p, pkt), nil
	}
	drain := c.OnDrain
	first := !c.drained
	c.drained = true
	c.mu.Unlock()

	if first && drain != nil {
		drain()
	}
	<-c.closed
	return 0, os.ErrClosed
}

func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), p...))
	return len(p), nil
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) Ioctls() []Ioctl {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Ioctl(nil), c.ioctls...)
}

// Requests lists just the request codes, in order.
func (c *Conn) Requests() []uint {
	var reqs []uint
	for _, io := range c.Ioctls() {
		reqs = append(reqs, io.Req)
	}
	return reqs
}

func (c *Conn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// Packet builds a 36 byte UD packet from slid to dlid, ICRC included.
func Packet(slid, dlid int) []byte {
	p := make([]byte, 36)
	p[0] = 0x00
	p[1] = 0x02
	p[2], p[3] = byte(dlid>>8), byte(dlid)
	p[5] = 9
	p[6], p[7] = byte(slid>>8), byte(slid)
	p[8] = 0x64
	p[13], p[14], p[15] = 0, 0, 0x11 // dest QP
	p[25], p[26], p[27] = 0, 0, 0x22 // source QP
	p[28] = 0xab
	p[32], p[33], p[34], p[35] = 0xde, 0xad, 0xbe, 0xef
	return p
}
