// Package snoopioctl walks the diagpkt device's ioctls: version, filters
// and a full ARMED, ACTIVE, DOWN cycle of the port link state.
package snoopioctl

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	Name = "SnoopIoctl"
	// LocalArg in --args runs the cycle against this node's device
	// instead of dispatching to the first host.
	LocalArg = "local"
)

var (
	PollAttempts = 60
	PollInterval = time.Second
)

type Test struct {
	Open snoopdev.OpenFunc
}

func New() Test { return Test{Open: snoopdev.Open} }

func (Test) Name() string { return Name }

func (t Test) Run(ctx context.Context, env *regtest.Env) error {
	if lo.Contains(env.Info.ExtraArgs(), LocalArg) {
		return t.local(ctx, env)
	}
	if err := env.RequireHosts(1); err != nil {
		return err
	}
	h := env.Info.Host(0)
	cmd := fmt.Sprintf("%s test %s --%s %s --%s %s", env.Self, Name, testinfo.FlagDevice, env.Info.Device(), testinfo.FlagArgs, LocalArg)
	env.Log.Logf(0, "Running %s on %s", cmd, h.Name)
	status, err := env.Runner.Stream(ctx, h, cmd, env.Out, host.AsRoot())
	if err != nil {
		return err
	}
	if status != 0 {
		return regtest.Fail("%s on %s exited %d", Name, h.Name, status)
	}
	return env.Pass("Completed!")
}

type cycle struct {
	env *regtest.Env
	dev *snoopdev.Device
}

func (t Test) local(ctx context.Context, env *regtest.Env) error {
	dev, err := snoopdev.OpenDevice(t.Open, env.Info.Device(), snoopdev.ModeSnoop)
	if err != nil {
		return regtest.Fail("could not open device: %v", err)
	}
	defer dev.Close() //nolint:errcheck // nothing to flush
	env.Log.Logf(0, "Opened %s", dev.Path)
	c := &cycle{env: env, dev: dev}

	v, err := dev.Version()
	if err != nil {
		return regtest.Fail("%v", err)
	}
	env.Log.Logf(0, "IOCTL_GET_VERSION: %d", v)

	if err := c.filters(); err != nil {
		return regtest.Fail("%v", err)
	}

	state, err := c.state()
	if err != nil {
		return err
	}
	switch {
	case state.Active():
		env.Log.Log(0, "Link is up, needs to be in init to start test")
		if err := c.bringDown(ctx); err != nil {
			return err
		}
	case !state.Init():
		return regtest.Fail("not in init state, can not continue: %s", state)
	}

	if err := c.change(snoopdev.LinkArmed, snoopdev.PortState.Armed); err != nil {
		return err
	}
	if err := c.change(snoopdev.LinkActive, snoopdev.PortState.Active); err != nil {
		return err
	}
	if err := c.bringDown(ctx); err != nil {
		return err
	}
	return env.Pass("Completed!")
}

// filters sets and clears each filter kind, leaving the device unfiltered
// with drop_send off.
func (c *cycle) filters() error {
	if err := c.dev.ClearFilter(); err != nil {
		return err
	}
	if err := c.dev.ClearQueue(); err != nil {
		return err
	}
	for _, by := range []int{snoopdev.FilterBySLID, snoopdev.FilterByDLID} {
		if err := c.dev.SetFilter(by, 1); err != nil {
			return err
		}
		if err := c.dev.ClearFilter(); err != nil {
			return err
		}
	}
	return c.dev.SetOptions(false)
}

func (c *cycle) state() (snoopdev.PortState, error) {
	s, err := c.dev.PortState()
	if err != nil {
		return s, regtest.Fail("%v", err)
	}
	c.env.Log.Logf(0, "IOCTL_GET_LINK_STATE: %s", s)
	return s, nil
}

// set requests link with the physical state polling and returns what the
// driver reports back.
func (c *cycle) set(link snoopdev.LinkState) (snoopdev.PortState, error) {
	want := snoopdev.PortState{Link: link, Phys: snoopdev.PhysPoll}
	c.env.Log.Logf(0, "Setting state to 0x%x (%s)", want.Encode(), want)
	li, err := c.dev.SetPortState(want)
	if err != nil {
		return snoopdev.PortState{}, regtest.Fail("%v", err)
	}
	c.env.Print(li.String())
	s, err := li.State()
	if err != nil {
		return s, regtest.Fail("%v", err)
	}
	return s, nil
}

func (c *cycle) change(link snoopdev.LinkState, reached func(snoopdev.PortState) bool) error {
	s, err := c.set(link)
	if err != nil {
		return err
	}
	if !reached(s) {
		return regtest.Fail("failed to bring link to %s, driver reports %s", link, s)
	}
	return c.sanity(s)
}

// bringDown drops the link and waits for it to retrain back to init.
func (c *cycle) bringDown(ctx context.Context) error {
	c.env.Log.Log(0, "Bringing port down...")
	s, err := c.set(snoopdev.LinkDown)
	if err != nil {
		return err
	}
	for attempt := 0; !s.Init(); attempt++ {
		if !s.Polling() {
			return regtest.Fail("not down or polling: %s", s)
		}
		if attempt == PollAttempts {
			return regtest.Fail("link still polling after %d checks", PollAttempts)
		}
		c.env.Log.Logf(0, "Down but polling, check again in %s", PollInterval)
		if err := c.env.Pause(ctx, PollInterval); err != nil {
			return err
		}
		li, err := c.dev.LinkInfo()
		if err != nil {
			return regtest.Fail("%v", err)
		}
		if s, err = li.State(); err != nil {
			return regtest.Fail("%v", err)
		}
	}
	return c.sanity(s)
}

// sanity checks the short query agrees with the extended one.
func (c *cycle) sanity(want snoopdev.PortState) error {
	got, err := c.state()
	if err != nil {
		return err
	}
	if got != want {
		return regtest.Fail("state mismatch: extended query says %s, short query says %s", want, got)
	}
	return nil
}
