package snoop

import (
	"context"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
)

const (
	SnoopLocalName = "SnoopLocal"
	PcapLocalName  = "PcapLocal"
)

// Local is a listener that runs on the node owning the device. It stops on
// SIGINT, which the test command turns into a cancelled context.
type Local struct {
	name string
	mode int
	Open snoopdev.OpenFunc
}

func NewSnoopLocal() *Local {
	return &Local{name: SnoopLocalName, mode: snoopdev.ModeSnoop, Open: snoopdev.Open}
}

func NewPcapLocal() *Local {
	return &Local{name: PcapLocalName, mode: snoopdev.ModeCapture, Open: snoopdev.Open}
}

func (l *Local) Name() string { return l.name }

func (l *Local) Run(ctx context.Context, env *regtest.Env) error {
	args, err := ParseListenerArgs(env.Info.ExtraArgs())
	if err != nil {
		return breverrors.NewConfigError("%s: %v", l.name, err)
	}
	env.Log.Logf(0, "Filter By: %d Filter Val: 0x%x Corrupt: %t Drop: %t Flip: %t Drop send: %t",
		args.FilterBy, args.FilterValue, args.Corrupt, args.Drop, args.Flip, args.DropSend)

	dev, err := snoopdev.OpenDevice(l.Open, env.Info.Device(), l.mode)
	if err != nil {
		return regtest.Fail("could not open snoop device: %v", err)
	}
	defer dev.Close() //nolint:errcheck // read only teardown
	env.Log.Logf(0, "Opened %s", dev.Path)

	listener := &Listener{Dev: dev, Args: args, Mode: l.mode, Out: env.Out, Log: env.Log}
	if err := listener.Setup(); err != nil {
		return regtest.Fail("could not set up %s: %v", dev.Path, err)
	}
	env.Log.Log(0, "Waiting for packets")
	pkts, err := listener.Run(ctx)
	if err == nil {
		env.Print("Caught Ctrl+C")
	}
	listener.Report(pkts)
	if err != nil {
		return regtest.Fail("reading %s: %v", dev.Path, err)
	}
	return env.Pass("Success!")
}
