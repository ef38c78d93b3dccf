// Package loadmodule reloads the hfi driver on every host, brings up the
// subnet manager and waits for the links to go active.
package loadmodule

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/retry"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	Name = "LoadModule"

	DriverName  = "hfi"
	DriverFile  = "hfi.ko"
	lsmod       = "/sbin/lsmod"
	rmmod       = "/sbin/rmmod"
	insmod      = "/sbin/insmod"
	portQuery   = "/usr/sbin/ibportstate -D 0 query"
	serviceTool = "/sbin/service"
)

// loaded module names the driver has shipped under
var driverAliases = []string{"hfi1", DriverName}

var (
	RemovePolicy = retry.Exponential(3, time.Second)
	ActivePolicy = retry.Fixed(2, 10*time.Second)
	// ActiveRounds is how many times every host is polled, with a subnet
	// manager restart between rounds.
	ActiveRounds = 2
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireHosts(1); err != nil {
		return err
	}
	env.Print(env.Info.String())
	if err := Restore(ctx, env); err != nil {
		return err
	}
	return env.Pass("Driver loaded and all links active")
}

// Restore loads the driver with the configured module parameters.
func Restore(ctx context.Context, env *regtest.Env) error {
	params := make([]*orderedmap.OrderedMap[string, string], env.Info.HostCount())
	for i := range params {
		params[i] = env.Info.ModuleParams(i)
	}
	return Load(ctx, env, params)
}

// Reload loads the driver with raw module parameters in place of the
// configured ones. Other tests use it to flip driver features.
func Reload(ctx context.Context, env *regtest.Env, raw string) error {
	params, err := testinfo.ParseModuleParams(raw, env.Info.HostCount())
	if err != nil {
		return err
	}
	return Load(ctx, env, params)
}

// Load swaps the driver on every host for a fresh copy with params[i],
// restarts the subnet manager and waits for every link to go active.
func Load(ctx context.Context, env *regtest.Env, params []*orderedmap.OrderedMap[string, string]) error {
	if env.Info.HfiSrc() == "" {
		return regtest.Fail("no driver source tree, set --hfisrc")
	}
	driver := path.Join(env.Info.RemotePath(env.Info.HfiSrc()), DriverFile)

	for i, h := range env.Info.Hosts() {
		if err := unload(ctx, env, h); err != nil {
			return err
		}
		cmd := strings.TrimSpace(fmt.Sprintf("%s %s %s", insmod, driver, testinfo.FormatModuleParams(params[i])))
		env.Log.Logf(0, "Loading driver on %s", h.Name)
		if _, err := env.Must(ctx, h, cmd, host.AsRoot()); err != nil {
			return err
		}
	}

	sm := newSubnetManager(env)
	if err := sm.ensure(ctx); err != nil {
		return err
	}
	return waitActive(ctx, env, sm)
}

func unload(ctx context.Context, env *regtest.Env, h host.Host) error {
	res, err := env.Must(ctx, h, lsmod, host.AsRoot())
	if err != nil {
		return err
	}
	for _, name := range driverAliases {
		if !adapters.ModuleLoaded(res.Lines, name) {
			continue
		}
		env.Log.Logf(0, "Removing %s from %s", name, h.Name)
		p := RemovePolicy
		p.Sleep = env.Sleep
		err := retry.Do(ctx, p, func(int) error {
			_, err := env.Must(ctx, h, rmmod+" "+name, host.AsRoot())
			return err
		})
		if err != nil {
			return regtest.Fail("could not remove %s on %s: %v", name, h.Name, err)
		}
	}
	return nil
}

// subnetManager drives the sm service chosen by --sm. A nil service means
// the fabric is managed elsewhere.
type subnetManager struct {
	env     *regtest.Env
	service string
}

func newSubnetManager(env *regtest.Env) *subnetManager {
	switch env.Info.SM() {
	case "none", "remote":
		return &subnetManager{env: env}
	case "ifs_fm":
		return &subnetManager{env: env, service: "ifs_fm"}
	default:
		return &subnetManager{env: env, service: "opensm"}
	}
}

func (s *subnetManager) managed() bool {
	return s.service != ""
}

func (s *subnetManager) command(verb string) string {
	return fmt.Sprintf("%s %s %s", serviceTool, s.service, verb)
}

func (s *subnetManager) running(ctx context.Context) ([]host.Host, error) {
	var up []host.Host
	for _, h := range s.env.Info.Hosts() {
		res, err := s.env.Runner.Run(ctx, h, s.command("status"), host.AsRoot())
		if err != nil {
			return nil, breverrors.WrapAndTrace(err)
		}
		if adapters.OpenSMRunning(res.Lines) {
			up = append(up, h)
		}
	}
	return up, nil
}

// ensure leaves exactly one instance running. A second running instance
// is a broken fabric the test refuses to paper over.
func (s *subnetManager) ensure(ctx context.Context) error {
	if !s.managed() {
		s.env.Log.Logf(0, "sm is %s, leaving the subnet manager alone", s.env.Info.SM())
		return nil
	}
	up, err := s.running(ctx)
	if err != nil {
		return err
	}
	switch len(up) {
	case 0:
		h := s.env.Info.Host(0)
		s.env.Log.Logf(0, "No %s running, starting it on %s", s.service, h.Name)
		_, err = s.env.Must(ctx, h, s.command("start"), host.AsRoot())
	case 1:
		s.env.Log.Logf(0, "Restarting %s on %s", s.service, up[0].Name)
		_, err = s.env.Must(ctx, up[0], s.command("restart"), host.AsRoot())
	default:
		return regtest.Fail("%s is running on more than one host", s.service)
	}
	return err
}

func (s *subnetManager) restart(ctx context.Context) error {
	if !s.managed() {
		return nil
	}
	up, err := s.running(ctx)
	if err != nil {
		return err
	}
	target := s.env.Info.Host(0)
	if len(up) > 0 {
		target = up[0]
	}
	_, err = s.env.Must(ctx, target, s.command("restart"), host.AsRoot())
	return err
}

func waitActive(ctx context.Context, env *regtest.Env, sm *subnetManager) error {
	pending := env.Info.Hosts()
	for round := 1; round <= ActiveRounds && len(pending) > 0; round++ {
		if round > 1 {
			env.Log.Logf(0, "Links not active on %d host(s), restarting the subnet manager", len(pending))
			if err := sm.restart(ctx); err != nil {
				return err
			}
		}
		var still []host.Host
		for _, h := range pending {
			ok, err := linkActive(ctx, env, h)
			if err != nil {
				return err
			}
			if !ok {
				still = append(still, h)
			}
		}
		pending = still
	}
	if len(pending) > 0 {
		names := make([]string, len(pending))
		for i, h := range pending {
			names[i] = h.Name
		}
		return regtest.Fail("link never went active on %s", strings.Join(names, ", "))
	}
	return nil
}

func linkActive(ctx context.Context, env *regtest.Env, h host.Host) (bool, error) {
	p := ActivePolicy
	p.Sleep = env.Sleep
	err := retry.Poll(ctx, p, func(attempt int) (bool, error) {
		env.Log.Logf(5, "Checking link state on %s (attempt %d)", h.Name, attempt)
		res, err := env.Runner.Run(ctx, h, portQuery, host.AsRoot())
		if err != nil {
			return false, breverrors.WrapAndTrace(err)
		}
		return adapters.LinkStateActive(res.Lines), nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return false, nil
	}
	return err == nil, err
}
