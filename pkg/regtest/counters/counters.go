// Package counters drives MPI traffic between two hosts and checks that
// hfistats, hfidiags and the PMA agree on the port counters.
package counters

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

const (
	Name = "Cntr"

	// Threshold is how far apart, in percent, two readings may drift.
	Threshold = 5.0

	hfiStats = "hfistats -i 0"
	// PMA dump covering VL 0, 3 and 15
	pmaQuery = "iba_pmaquery -w 0x8009"
	pmaClear = "iba_pmaquery -o clearportstatus -n 0x2"
	fmSweep  = "service ifs_fm sweep && sleep 5 && service ifs_fm sweep && sleep 5"

	readScript    = "Cntr.diags"
	limit32Script = "Cntr32limit.diags"
	limit64Script = "Cntr64limit.diags"
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

type stage struct {
	title string
	// preset is the diags script that primes the counters, if any
	preset     string
	saturateOK bool
}

var stages = []stage{
	{title: "Test 1 Basic Counter Test"},
	{title: "Test 2 32 Bit Limit Test", preset: limit32Script},
	{title: "Test 3 64 Bit Limit Test", preset: limit64Script, saturateOK: true},
}

type run struct {
	env     *regtest.Env
	h       host.Host
	traffic string
	diags   string
	scripts string
}

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireHosts(2); err != nil {
		return err
	}
	paths, err := env.ResolveMPI(ctx)
	if err != nil {
		return err
	}
	h := env.Info.Host(0)
	osu := testinfo.OSUBenchmarkDir(ctx, env.Runner, h)
	r := &run{
		env:     env,
		h:       h,
		traffic: env.MPIRun(paths, 2, env.Info.HostNames(2)) + " " + osu + "osu_bw",
		diags:   diagsBinary(env.Info),
		scripts: env.Info.RemotePath(env.TestsDir),
	}
	env.Log.Logf(0, "MPI Cmd is %s", r.traffic)

	if err := r.pass(ctx); err != nil {
		return err
	}
	env.Log.Log(0, "First pass completed. Zeroing and doing pass 2")
	for _, cmd := range []string{pmaClear, fmSweep} {
		// a fabric without ifs_fm still counts from zero after the clear
		if _, err := env.Runner.Run(ctx, h, cmd, host.AsRoot()); err != nil {
			return err
		}
	}
	if err := r.pass(ctx); err != nil {
		return err
	}
	return env.Pass("Success!")
}

func diagsBinary(ti *testinfo.TestInfo) string {
	lib := ti.DiagLib()
	if lib == "" || lib == testinfo.Sentinel {
		return "hfidiags"
	}
	return path.Join(ti.RemotePath(lib), "hfidiags", "hfidiags")
}

func (r *run) script(name string) string {
	return fmt.Sprintf("%s -s %s", r.diags, path.Join(r.scripts, name))
}

func (r *run) pass(ctx context.Context) error {
	for _, s := range stages {
		r.env.Log.Log(0, strings.Repeat("-", len(s.title)))
		r.env.Log.Log(0, s.title)
		r.env.Log.Log(0, strings.Repeat("-", len(s.title)))
		if s.preset != "" {
			if _, err := r.env.Must(ctx, r.h, r.script(s.preset), host.AsRoot()); err != nil {
				return regtest.Fail("could not prime counters with %s: %v", s.preset, err)
			}
		}
		status, err := r.env.Runner.Stream(ctx, r.h, r.traffic, r.env.Out)
		if err != nil {
			return err
		}
		if status != 0 {
			return regtest.Fail("MPI traffic exited %d", status)
		}
		if err := r.check(ctx, s.saturateOK); err != nil {
			return err
		}
	}
	return nil
}

// check reads all three sources and reconciles every counter. hfistats
// goes first: large values lose precision to its K suffix, so it must see
// the smallest number.
func (r *run) check(ctx context.Context, saturateOK bool) error {
	read := func(what, cmd string) ([]string, error) {
		r.env.Log.Logf(0, "Running %s", cmd)
		res, err := r.env.Must(ctx, r.h, cmd, host.AsRoot())
		if err != nil {
			return nil, regtest.Fail("could not get %s output", what)
		}
		r.env.Print(res.Lines...)
		return res.Lines, nil
	}
	stats, err := read("hfistats", hfiStats)
	if err != nil {
		return err
	}
	pma, err := read("pmaquery", pmaQuery)
	if err != nil {
		return err
	}
	diags, err := read("hfidiags", r.script(readScript))
	if err != nil {
		return err
	}

	var bad *multierror.Error
	for _, c := range adapters.DefaultCounters(r.env.Info.Simulated()) {
		v := adapters.ReadCounter(c, stats, diags, pma)
		r.env.Log.Logf(0, "%s ::> stats=0x%x diags=0x%x pma=0x%x", c.Name, v.Stats, v.Diags, v.PMA)
		ok, notes := adapters.Reconcile(v, Threshold, saturateOK)
		for _, n := range notes {
			r.env.Log.Logf(0, "\t%s", n)
		}
		if !ok {
			bad = multierror.Append(bad, fmt.Errorf("%s: %s", c.Name, strings.Join(notes, "; ")))
		}
	}
	if bad != nil {
		return regtest.Fail("bad counter values found: %v", bad.ErrorOrNil())
	}
	return nil
}
