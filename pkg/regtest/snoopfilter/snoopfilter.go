// Package snoopfilter checks each diagpkt filter kind. A client on the
// second host sets the filter and waits for two good packets while a
// server on the first host writes good and bad ones alternately.
package snoopfilter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	Name      = "SnoopFilter"
	LocalName = "SnoopFilterLocal"

	RoleServer = "server"
	RoleClient = "client"

	// wanted is how many good packets the client waits for; the server
	// writes exactly that many.
	wanted = 2
)

var (
	// ClientSettle lets the client set its filter before anything is sent.
	ClientSettle  = 5 * time.Second
	ClientTimeout = 30 * time.Second
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

// Run tries every filter kind, or only the kinds listed in --args.
func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireDistinctHosts(); err != nil {
		return err
	}
	cases, err := selectCases(env.Info.ExtraArgs())
	if err != nil {
		return err
	}
	server, client := env.Info.Host(0), env.Info.Host(1)

	var result *multierror.Error
	for _, c := range cases {
		env.Log.Logf(0, "Testing %s filter", c)
		if err := runCase(ctx, env, server, client, c); err != nil {
			env.Log.Errorf("%s filter: %v", c, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", c, err))
			continue
		}
		env.Log.Logf(0, "%s filter passed", c)
	}
	if err := result.ErrorOrNil(); err != nil {
		return regtest.Fail("%d of %d filters failed: %v", len(result.Errors), len(cases), err)
	}
	return env.Pass("Completed!")
}

func selectCases(args []string) ([]Case, error) {
	if len(args) == 0 {
		return Cases, nil
	}
	out := make([]Case, 0, len(args))
	for _, a := range args {
		by, err := parseFilter(a)
		if err != nil {
			return nil, breverrors.NewConfigError("%s: %v", Name, err)
		}
		c, ok := caseFor(by)
		if !ok {
			return nil, breverrors.NewConfigError("%s: no filter kind %d", Name, by)
		}
		out = append(out, c)
	}
	return out, nil
}

// parseFilter reads a filter kind, hex with or without 0x.
func parseFilter(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad filter kind %q", s)
	}
	return int(v), nil
}

func localCmd(env *regtest.Env, c Case, role string) string {
	return fmt.Sprintf("%s test %s --%s %s --%s 0x%x,%s",
		env.Self, LocalName, testinfo.FlagDevice, env.Info.Device(), testinfo.FlagArgs, c.By, role)
}

func runCase(ctx context.Context, env *regtest.Env, server, client host.Host, c Case) error {
	task, err := env.Runner.Start(ctx, client, localCmd(env, c, RoleClient), host.AsRoot())
	if err != nil {
		return err
	}
	stop := func() {
		res, err := env.Runner.KillMatching(ctx, client, "INT", "test "+LocalName)
		if err != nil || !res.OK() {
			env.Log.Warnf("could not signal %s on %s", LocalName, client.Name)
		}
	}

	if err := env.Pause(ctx, ClientSettle); err != nil {
		stop()
		return err
	}
	res, err := env.Runner.Run(ctx, server, localCmd(env, c, RoleServer), host.AsRoot())
	if err != nil {
		stop()
		return err
	}
	if !res.OK() {
		stop()
		return fmt.Errorf("server on %s exited %d:\n%s", server.Name, res.ExitStatus, strings.Join(res.Lines, "\n"))
	}

	res, err = task.Wait(ctx, ClientTimeout)
	if err != nil {
		stop()
		return fmt.Errorf("client on %s saw no filtered packets in %s: %w", client.Name, ClientTimeout, err)
	}
	if !res.OK() {
		return fmt.Errorf("client on %s exited %d:\n%s", client.Name, res.ExitStatus, strings.Join(res.Lines, "\n"))
	}
	return nil
}

// Local is one side of a filter case on the node owning the device. Its
// --args are the filter kind and the role.
type Local struct {
	Open snoopdev.OpenFunc
}

func NewLocal() Local { return Local{Open: snoopdev.Open} }

func (Local) Name() string { return LocalName }

func (l Local) Run(ctx context.Context, env *regtest.Env) error {
	args := env.Info.ExtraArgs()
	if len(args) != 2 {
		return breverrors.NewConfigError("%s: want filter_kind,server|client, got %q", LocalName, strings.Join(args, ","))
	}
	by, err := parseFilter(args[0])
	if err != nil {
		return breverrors.NewConfigError("%s: %v", LocalName, err)
	}
	c, ok := caseFor(by)
	if !ok {
		return breverrors.NewConfigError("%s: no filter kind %d", LocalName, by)
	}
	role := strings.TrimSpace(args[1])
	if role != RoleServer && role != RoleClient {
		return regtest.Fail("did not specify server or client")
	}

	dev, err := snoopdev.OpenDevice(l.Open, env.Info.Device(), snoopdev.ModeSnoop)
	if err != nil {
		return regtest.Fail("could not open snoop device: %v", err)
	}
	defer dev.Close() //nolint:errcheck // nothing buffered
	env.Log.Logf(0, "Opened %s in %s mode for the %s filter", dev.Path, role, c)

	if role == RoleServer {
		err = serve(env, dev, c)
	} else {
		err = receive(ctx, env, dev, c)
	}
	if err != nil {
		return err
	}
	return env.Pass("Completed!")
}

// serve writes bad, good, bad, good.
func serve(env *regtest.Env, dev *snoopdev.Device, c Case) error {
	for i := 0; i < wanted; i++ {
		for _, v := range []byte{c.Bad, c.Good} {
			p := Packet()
			p[c.Offset] = v
			n, err := dev.WritePacket(p)
			if err != nil {
				return regtest.Fail("failed to write packet: %v", err)
			}
			if n != PacketLen {
				return regtest.Fail("wrote %d of %d bytes", n, PacketLen)
			}
			env.Log.Logf(0, "Wrote packet of %d bytes", n)
		}
	}
	return nil
}

func receive(ctx context.Context, env *regtest.Env, dev *snoopdev.Device, c Case) error {
	if err := dev.ClearFilter(); err != nil {
		return regtest.Fail("could not clear filters: %v", err)
	}
	if err := dev.ClearQueue(); err != nil {
		return regtest.Fail("could not clear the queue: %v", err)
	}
	if v := c.FilterValue(); v != int(c.Good) {
		env.Log.Logf(0, "Setting special filter value 0x%x", v)
	}
	if err := dev.SetFilter(c.By, c.FilterValue()); err != nil {
		return regtest.Fail("could not set filter: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- match(ctx, env, dev, c) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return regtest.Fail("stopped before %d filtered packets arrived", wanted)
	}
}

// match reads until wanted good packets arrive. Any test packet carrying
// the bad value means the filter let it through.
func match(ctx context.Context, env *regtest.Env, dev *snoopdev.Device, c Case) error {
	count := 0
	for count < wanted {
		p, err := dev.ReadPacket()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return regtest.Fail("reading %s: %v", dev.Path, err)
		}
		if h, err := snoopdev.ParseHeader(p); err == nil {
			env.Log.Logf(1, "Found a %d byte pkt vl %d pktlen %d Dwords dlid %d slid %d", len(p), h.VL, h.PktLen, h.DLID, h.SLID)
		}
		if !Marked(p) {
			env.Log.Log(1, "Not the packet I want trying again")
			continue
		}
		if p[c.Offset] != c.Good {
			return regtest.Fail("got wrong packet: byte %d is 0x%x, filter wants 0x%x", c.Offset, p[c.Offset], c.Good)
		}
		count++
	}
	return nil
}
