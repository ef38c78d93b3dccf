// Package perfreg runs the MPI, IPoIB and verbs performance check suites
// between two hosts and judges their summaries.
package perfreg

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	"github.com/brevdev/hfi-regress/pkg/config"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
)

const (
	Name = "PerfReg"

	// DefaultSuiteDir is where the performance team's check scripts live
	// when --basedir does not say otherwise.
	DefaultSuiteDir = "/opt/fab_perf"
	MPIVars         = "/usr/mpi/gcc/openmpi-1.10.2-hfi/bin/mpivars.sh"
	turbo           = "noturbo"
	dateLayout      = "01-02-06"
)

var IPoIBSettle = 10 * time.Second

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

type suite struct {
	env        *regtest.Env
	h1, h2     host.Host
	suiteDir   string
	workDir    string
	dateSuffix string
}

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireDistinctHosts(); err != nil {
		return err
	}
	s := &suite{
		env:        env,
		h1:         env.Info.Host(0),
		h2:         env.Info.Host(1),
		suiteDir:   DefaultSuiteDir,
		dateSuffix: env.Timestamp(dateLayout),
	}
	if env.Info.BaseDir() != "" {
		s.suiteDir = env.Info.BaseDir()
	}
	base := "/tmp"
	if env.Info.PerfDir() != "" {
		base = env.Info.PerfDir()
	}
	s.workDir = path.Join(base, config.GlobalConfig.GetUser()+"."+env.Timestamp("200601021504"))

	// every suite writes into a private copy of the MPI scripts, on both
	// hosts, so concurrent users never collide
	cp := fmt.Sprintf("cp -r %s %s", s.mpiDir(), s.workDir)
	for _, h := range []host.Host{s.h1, s.h2} {
		if _, err := env.Must(ctx, h, cp); err != nil {
			return regtest.Fail("could not create work dir on %s: %v", h.Name, err)
		}
	}

	var failed *multierror.Error
	for _, check := range []struct {
		name string
		run  func(context.Context) ([]string, error)
	}{
		{"MPI", s.mpi},
		{"IPoSTL", s.ipostl},
		{"Verbs", s.verbs},
	} {
		lines, err := check.run(ctx)
		if err != nil {
			failed = multierror.Append(failed, fmt.Errorf("%s: %w", check.name, err))
			continue
		}
		env.Print(lines...)
		if bad := adapters.SummaryFailures(lines); len(bad) > 0 {
			env.Log.Warnf("%s summary reports %d failure(s)", check.name, len(bad))
			failed = multierror.Append(failed, fmt.Errorf("%s: %d failed measurement(s)", check.name, len(bad)))
		}
	}

	if err := failed.ErrorOrNil(); err != nil {
		return regtest.Fail("performance regression, data retained in %s: %v", s.workDir, err)
	}
	if env.Info.PerfDir() != "" {
		return env.Pass("Test complete, retained data in " + s.workDir)
	}
	env.Log.Log(0, "Tests completed removing temp dir")
	for _, h := range []host.Host{s.h1, s.h2} {
		if _, err := env.Must(ctx, h, "rm -rf "+s.workDir); err != nil {
			return regtest.Fail("could not remove %s on %s", s.workDir, h.Name)
		}
	}
	return env.Pass("Performance within limits")
}

func (s *suite) mpiDir() string {
	return path.Join(s.suiteDir, "scripts/regression/osu-perf-check")
}

func (s *suite) ib(h host.Host) string {
	return h.Name + "-ib"
}

func (s *suite) mpi(ctx context.Context) ([]string, error) {
	hosts := fmt.Sprintf("%s_%s.hosts", s.h1.Name, s.h2.Name)
	hostsFile := path.Join(s.workDir, hosts)
	if _, err := s.env.Must(ctx, s.h1, fmt.Sprintf("echo %s > %s", s.h1.Name, hostsFile)); err != nil {
		return nil, err
	}
	if _, err := s.env.Must(ctx, s.h1, fmt.Sprintf("echo %s >> %s", s.h2.Name, hostsFile)); err != nil {
		return nil, err
	}
	cmd := fmt.Sprintf("cd %s && source %s && ./run.sh %s %s", s.workDir, MPIVars, hosts, turbo)
	s.env.Log.Logf(5, "MPI Cmd: %s", cmd)
	if _, err := s.env.Runner.Stream(ctx, s.h1, cmd, s.env.Out, host.WithTTY()); err != nil {
		return nil, err
	}
	summary := path.Join(s.workDir, "OUTPUT-"+s.dateSuffix, "no-turbo", "summary")
	return s.cat(ctx, summary)
}

func (s *suite) ipostl(ctx context.Context) ([]string, error) {
	if err := s.startIPoIB(ctx); err != nil {
		return nil, err
	}
	logDir := path.Join(s.workDir, "IPoSTL_OUTPUT-"+s.dateSuffix)
	dir := path.Join(s.suiteDir, "scripts/regression/ipostl-perf-check")
	cmd := fmt.Sprintf("cd %s && ./run-ipostl.sh %s %s %s %s", dir, s.h2.Name, s.ib(s.h2), s.ib(s.h1), logDir)
	s.env.Log.Logf(0, "Running IPoSTL test with %s", cmd)
	if _, err := s.env.Runner.Stream(ctx, s.h1, cmd, s.env.Out, host.WithTTY()); err != nil {
		return nil, err
	}
	return s.cat(ctx, path.Join(logDir, "ipostl-summary.txt"))
}

func (s *suite) verbs(ctx context.Context) ([]string, error) {
	logDir := path.Join(s.workDir, "VERBS_OUTPUT-"+s.dateSuffix)
	dir := path.Join(s.suiteDir, "Verbs/verbs-perf-check-r1.0")
	cmd := fmt.Sprintf("cd %s && ./run-Verbs-LZ-1QP-Tests.sh %s %s", dir, s.ib(s.h2), logDir)
	s.env.Log.Logf(0, "Running verbs test with %s", cmd)
	if _, err := s.env.Runner.Stream(ctx, s.h1, cmd, s.env.Out, host.WithTTY()); err != nil {
		return nil, err
	}
	return s.cat(ctx, path.Join(logDir, "VerbsLZSummary.csv"))
}

func (s *suite) cat(ctx context.Context, file string) ([]string, error) {
	res, err := s.env.Runner.Run(ctx, s.h1, "cat "+file)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("no summary at %s", file)
	}
	return res.Lines, nil
}

// startIPoIB makes sure host1 can reach host2 over IPoIB, loading and
// raising the interfaces when the first ping fails.
func (s *suite) startIPoIB(ctx context.Context) error {
	ping := "ping -c 3 -W 5 " + s.ib(s.h2)
	res, err := s.env.Runner.Run(ctx, s.h1, ping)
	if err != nil {
		return err
	}
	if res.OK() {
		return nil
	}
	for _, step := range []string{"modprobe ib_ipoib", "ifup ib0"} {
		for _, h := range []host.Host{s.h1, s.h2} {
			if _, err := s.env.Must(ctx, h, step, host.AsRoot()); err != nil {
				return err
			}
		}
		if err := s.env.Pause(ctx, IPoIBSettle); err != nil {
			return err
		}
	}
	res, err = s.env.Runner.Run(ctx, s.h1, ping)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s cannot reach %s over IPoIB", s.h1.Name, s.ib(s.h2))
	}
	return nil
}
