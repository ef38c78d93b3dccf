// Package snoop checks the driver's packet snoop and capture paths. A
// snoop listener on the first host intercepts ib_send_lat ping pongs and
// drops, reinjects or rewrites them while a capture listener on the second
// host counts what actually crossed the wire.
package snoop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/regtest/ibverbsperf"
	"github.com/brevdev/hfi-regress/pkg/regtest/loadmodule"
	"github.com/brevdev/hfi-regress/pkg/snoopdev"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	Name = "Snoop"

	// PingPongSize is a 2 byte payload padded to 4, a 28 byte header and
	// the ICRC.
	PingPongSize = 36
	pingPongs    = 5

	paramEnable   = "snoop_enable"
	paramDropSend = "snoop_drop_send"

	// CaptureOnly in --args runs just the capture listener.
	CaptureOnly = "capture"
)

var (
	// ListenerSettle lets both listeners open their devices.
	ListenerSettle = 5 * time.Second
	// HangTime is how long traffic runs when the scenario keeps
	// ib_send_lat from ever finishing.
	HangTime       = 30 * time.Second
	TrafficTimeout = 2 * time.Minute
	StopTimeout    = 30 * time.Second
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

type scenario struct {
	title    string
	dropSend bool
	args     ListenerArgs
	// hangs means ib_send_lat never completes and gets killed
	hangs bool
	// noSnoop runs only the capture listener
	noSnoop bool

	snoop   adapters.PingPong
	capture adapters.PingPong
	foreign bool
}

type run struct {
	env        *regtest.Env
	h1, h2     host.Host
	lid1, lid2 int
}

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireHosts(2); err != nil {
		return err
	}
	r := &run{env: env, h1: env.Info.Host(0), h2: env.Info.Host(1)}
	r.lid1 = r.lid(ctx, r.h1, 1)
	r.lid2 = r.lid(ctx, r.h2, 2)

	scenarios := r.scenarios()
	if lo.Contains(env.Info.ExtraArgs(), CaptureOnly) {
		scenarios = []scenario{{
			title:   "Capture only",
			noSnoop: true,
			capture: adapters.PingPong{Ping: pingPongs, Pong: pingPongs},
		}}
	}
	for i, sc := range scenarios {
		env.Print("XXXXXXXXXXXXXXX", fmt.Sprintf("Starting Test %d: %s", i+1, sc.title), "XXXXXXXXXXXXXXX")
		if err := r.scenario(ctx, sc); err != nil {
			return err
		}
	}

	env.Log.Log(0, "Completed, restoring module params")
	if err := loadmodule.Restore(ctx, env); err != nil {
		return err
	}
	return env.Pass("Success!")
}

func (r *run) lid(ctx context.Context, h host.Host, fallback uint32) int {
	lid := r.env.Runner.GetLID(ctx, h, r.env.Info.Device())
	if lid.IsAbsent() {
		r.env.Log.Warnf("no LID for %s on %s, assuming %d", r.env.Info.Device(), h.Name, fallback)
	}
	return int(lid.OrElse(fallback))
}

func (r *run) scenarios() []scenario {
	toHost2 := ListenerArgs{FilterBy: snoopdev.FilterByDLID, FilterValue: r.lid2}
	both := adapters.PingPong{Ping: pingPongs, Pong: pingPongs}

	watch := toHost2
	watch.Drop = true
	flip := ListenerArgs{FilterBy: snoopdev.FilterByDLID, FilterValue: r.lid1, Flip: true}
	corrupt := toHost2
	corrupt.Corrupt = true

	return []scenario{
		{
			title:   "snoop does not intercept outgoing",
			args:    watch,
			snoop:   adapters.PingPong{Pong: pingPongs},
			capture: both,
		},
		{
			title:    "snoop intercepts outgoing and reinjects",
			dropSend: true,
			args:     toHost2,
			snoop:    adapters.PingPong{Pong: pingPongs},
			capture:  both,
		},
		{
			title:   "snoop bounces incoming back to the sender",
			args:    flip,
			hangs:   true,
			snoop:   adapters.PingPong{Ping: pingPongs},
			capture: both,
		},
		{
			title:   "snoop corrupts the DLID of outgoing",
			args:    corrupt,
			hangs:   true,
			snoop:   adapters.PingPong{Pong: pingPongs},
			capture: adapters.PingPong{Ping: pingPongs, Pong: pingPongs, Foreign: pingPongs},
			foreign: true,
		},
	}
}

func (r *run) scenario(ctx context.Context, sc scenario) error {
	if err := r.ensureParams(ctx, sc.dropSend); err != nil {
		return err
	}

	var snoopTask *host.Task
	if !sc.noSnoop {
		t, err := r.env.Runner.Start(ctx, r.h1, r.listenerCmd(SnoopLocalName, sc.args.String()), host.AsRoot())
		if err != nil {
			return err
		}
		snoopTask = t
	}
	capTask, err := r.env.Runner.Start(ctx, r.h2, r.listenerCmd(PcapLocalName, ""), host.AsRoot())
	if err != nil {
		return err
	}

	trafficErr := r.traffic(ctx, sc.hangs)

	if snoopTask != nil {
		r.stop(ctx, r.h1, SnoopLocalName)
	}
	r.stop(ctx, r.h2, PcapLocalName)
	if trafficErr != nil {
		return trafficErr
	}

	if snoopTask != nil {
		lines, err := r.collect(ctx, snoopTask, SnoopLocalName)
		if err != nil {
			return err
		}
		got := adapters.Tally(adapters.ParseSnoop(lines), PingPongSize, r.lid1, r.lid2)
		r.env.Log.Logf(0, "Snoop Ping: %d Pong: %d", got.Ping, got.Pong)
		if got.Ping != sc.snoop.Ping || got.Pong != sc.snoop.Pong {
			return regtest.Fail("%s: snoop saw %d pings and %d pongs, want %d and %d",
				sc.title, got.Ping, got.Pong, sc.snoop.Ping, sc.snoop.Pong)
		}
	}

	lines, err := r.collect(ctx, capTask, PcapLocalName)
	if err != nil {
		return err
	}
	got := adapters.Tally(adapters.ParseCapture(lines), PingPongSize, r.lid1, r.lid2)
	r.env.Log.Logf(0, "Capture Ping: %d Pong: %d Foreign: %d", got.Ping, got.Pong, got.Foreign)
	if got.Ping != sc.capture.Ping || got.Pong != sc.capture.Pong || (sc.foreign && got.Foreign != sc.capture.Foreign) {
		return regtest.Fail("%s: capture saw %d pings, %d pongs and %d foreign, want %d, %d and %d",
			sc.title, got.Ping, got.Pong, got.Foreign, sc.capture.Ping, sc.capture.Pong, sc.capture.Foreign)
	}
	return nil
}

func (r *run) listenerCmd(name string, args string) string {
	cmd := fmt.Sprintf("%s test %s --%s %s", r.env.Self, name, testinfo.FlagDevice, r.env.Info.Device())
	if args != "" {
		cmd += fmt.Sprintf(" --%s %s", testinfo.FlagArgs, args)
	}
	return cmd
}

func (r *run) ensureParams(ctx context.Context, dropSend bool) error {
	ok, err := r.paramsMatch(ctx, dropSend)
	if err != nil || ok {
		return err
	}
	raw := paramEnable + "=1"
	if dropSend {
		raw += " " + paramDropSend + "=1"
	}
	r.env.Log.Logf(0, "Reloading the driver with %s", raw)
	if err := loadmodule.Reload(ctx, r.env, raw); err != nil {
		return err
	}
	ok, err = r.paramsMatch(ctx, dropSend)
	if err != nil {
		return err
	}
	if !ok {
		return regtest.Fail("could not set %s=1 %s=%t", paramEnable, paramDropSend, dropSend)
	}
	return nil
}

// paramsMatch is true when snoop is on and drop_send is as wanted on both
// hosts.
func (r *run) paramsMatch(ctx context.Context, dropSend bool) (bool, error) {
	for _, h := range []host.Host{r.h1, r.h2} {
		r.env.Log.Logf(0, "Checking snoop enablement for %s", h.Name)
		for _, p := range []struct {
			name string
			want bool
		}{{paramEnable, true}, {paramDropSend, dropSend}} {
			cmd := fmt.Sprintf("echo %s = `cat /sys/module/%s/parameters/%s`", p.name, loadmodule.DriverName, p.name)
			res, err := r.env.Must(ctx, h, cmd)
			if err != nil {
				return false, regtest.Fail("could not get status for host %s", h.Name)
			}
			if adapters.ParamEnabled(res.Lines, p.name) != p.want {
				return false, nil
			}
		}
	}
	return true, nil
}

// traffic runs ib_send_lat from host2 to host1. A hanging scenario is
// given HangTime and then killed.
func (r *run) traffic(ctx context.Context, hangs bool) error {
	r.env.Log.Logf(0, "Waiting for %s for the listeners to get ready", ListenerSettle)
	if err := r.env.Pause(ctx, ListenerSettle); err != nil {
		return err
	}
	cmd := fmt.Sprintf("ib_send_lat -d %s -s 2 -n %d", r.env.Info.Device(), pingPongs)
	server, err := r.env.Runner.Start(ctx, r.h1, cmd)
	if err != nil {
		return err
	}
	up, err := r.env.Runner.WaitForPort(ctx, r.h1, ibverbsperf.ListenPort, "LISTEN", r.env.Policy(10, time.Second), 1)
	if err != nil {
		return err
	}
	if !up {
		return regtest.Fail("ib_send_lat server on %s never listened", r.h1.Name)
	}
	client, err := r.env.Runner.Start(ctx, r.h2, cmd+" "+r.h1.Name)
	if err != nil {
		return err
	}

	if hangs {
		r.env.Log.Logf(0, "Letting packets move for %s", HangTime)
		if err := r.env.Pause(ctx, HangTime); err != nil {
			return err
		}
		for _, h := range []host.Host{r.h1, r.h2} {
			res, err := r.env.Runner.KillByName(ctx, h, "9", "ib_send_lat")
			if err != nil {
				return err
			}
			if !res.OK() {
				r.env.Log.Logf(5, "Could not stop ib_send_lat on %s", h.Name)
			}
		}
	}

	cres, cerr := client.Wait(ctx, TrafficTimeout)
	sres, serr := server.Wait(ctx, TrafficTimeout)
	r.env.Print(sres.Lines...)
	r.env.Print(cres.Lines...)
	if hangs {
		return nil
	}
	if cerr != nil || serr != nil || !cres.OK() || !sres.OK() {
		return regtest.Fail("ib_send_lat failed: client %d server %d", cres.ExitStatus, sres.ExitStatus)
	}
	return nil
}

func (r *run) stop(ctx context.Context, h host.Host, name string) {
	r.env.Log.Logf(0, "Stopping %s on %s", name, h.Name)
	res, err := r.env.Runner.KillMatching(ctx, h, "INT", "test "+name)
	if err != nil || !res.OK() {
		r.env.Log.Warnf("could not signal %s on %s", name, h.Name)
	}
}

func (r *run) collect(ctx context.Context, t *host.Task, name string) ([]string, error) {
	res, err := t.Wait(ctx, StopTimeout)
	if err != nil {
		return nil, regtest.Fail("%s on %s did not stop: %v", name, t.Host.Name, err)
	}
	if !res.OK() {
		return nil, regtest.Fail("%s on %s exited %d:\n%s", name, t.Host.Name, res.ExitStatus, strings.Join(res.Lines, "\n"))
	}
	return res.Lines, nil
}
