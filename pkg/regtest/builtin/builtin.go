// Package builtin wires every leaf test compiled into the binary.
package builtin

import (
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/regtest/counters"
	"github.com/brevdev/hfi-regress/pkg/regtest/ibverbsperf"
	"github.com/brevdev/hfi-regress/pkg/regtest/loadmodule"
	"github.com/brevdev/hfi-regress/pkg/regtest/mpitest"
	"github.com/brevdev/hfi-regress/pkg/regtest/perfreg"
	"github.com/brevdev/hfi-regress/pkg/regtest/snoop"
	"github.com/brevdev/hfi-regress/pkg/regtest/snoopfilter"
	"github.com/brevdev/hfi-regress/pkg/regtest/snoopioctl"
)

func Registry() *regtest.Registry {
	return regtest.NewRegistry().Register(
		loadmodule.New(),
		ibverbsperf.New(),
		perfreg.New(),
		mpitest.New(),
		counters.New(),
		snoop.New(),
		snoop.NewSnoopLocal(),
		snoop.NewPcapLocal(),
		snoopfilter.New(),
		snoopfilter.NewLocal(),
		snoopioctl.New(),
	)
}
