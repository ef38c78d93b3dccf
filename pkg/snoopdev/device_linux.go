//go:build linux

package snoopdev

import (
	"unsafe"

	"golang.org/x/sys/unix"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

type fdConn struct {
	fd int
}

// filterCmd mirrors the driver's filter record.
type filterCmd struct {
	opcode uint32
	length uint32
	value  unsafe.Pointer
}

// Open opens the diagpkt node at path in ModeSnoop or ModeCapture.
func Open(path string, mode int) (*Device, error) {
	fd, err := unix.Open(path, mode|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, breverrors.WrapAndTrace(err, "open "+path)
	}
	return NewDevice(path, &fdConn{fd: fd}), nil
}

func (c *fdConn) IoctlGetInt(req uint) (int, error) {
	return unix.IoctlGetInt(c.fd, req)
}

func (c *fdConn) IoctlSetPointerInt(req uint, value int) error {
	return unix.IoctlSetPointerInt(c.fd, req, value)
}

func (c *fdConn) IoctlFilter(req uint, opcode int, value int) error {
	v := int32(value)
	cmd := filterCmd{opcode: uint32(opcode), length: 4, value: unsafe.Pointer(&v)}
	return c.ioctl(req, unsafe.Pointer(&cmd))
}

func (c *fdConn) IoctlBuffer(req uint, buf []byte) error {
	if len(buf) == 0 {
		return unix.EINVAL
	}
	return c.ioctl(req, unsafe.Pointer(&buf[0]))
}

func (c *fdConn) ioctl(req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(c.fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (c *fdConn) Read(p []byte) (int, error) {
	return unix.Read(c.fd, p)
}

func (c *fdConn) Write(p []byte) (int, error) {
	return unix.Write(c.fd, p)
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}
