//go:build !linux

package snoopdev

import (
	"fmt"
	"runtime"
)

func Open(path string, _ int) (*Device, error) {
	return nil, fmt.Errorf("%s: diagpkt devices are not supported on %s", path, runtime.GOOS)
}
