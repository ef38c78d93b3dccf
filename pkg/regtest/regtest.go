// Package regtest holds the leaf regression tests that ship inside the
// binary. The dispatcher runs them as `hfi-regress test <Name>` child
// processes, exactly like the external test scripts.
package regtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/afero"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/retry"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// FailedExitCode is the status of a leaf test that ran and failed.
const FailedExitCode = 1

type Test interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Env is everything a leaf test may touch. Tests never reach for globals.
type Env struct {
	Info   *testinfo.TestInfo
	Runner *host.Runner
	Log    *testlog.Logger
	Term   *terminal.Terminal
	Fs     afero.Fs
	Out    io.Writer

	// Self is the path of this binary as the remote hosts see it.
	Self string
	// TestsDir holds the support files (diag scripts) leaf tests reference.
	TestsDir string

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Timestamp formats the current time with layout.
func (e *Env) Timestamp(layout string) string {
	return e.now().Format(layout)
}

// Pause waits d unless ctx ends first.
func (e *Env) Pause(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy is retry.Fixed wired to the environment's clock.
func (e *Env) Policy(attempts int, interval time.Duration) retry.Policy {
	p := retry.Fixed(attempts, interval)
	p.Sleep = e.Sleep
	return p
}

// Fail ends a leaf test with status 1.
func Fail(format string, a ...interface{}) error {
	return breverrors.NewExitError(FailedExitCode, format, a...)
}

// Pass prints the PASS banner. The caller returns nil right after.
func (e *Env) Pass(msg string) error {
	e.Term.Pass(msg)
	e.Log.Log(0, "PASS: "+msg)
	return nil
}

// RequireHosts fails unless at least n hosts are configured.
func (e *Env) RequireHosts(n int) error {
	if e.Info.HostCount() < n {
		return Fail("need at least %d hosts, have %d", n, e.Info.HostCount())
	}
	return nil
}

// RequireDistinctHosts fails unless the first two hosts are different
// machines.
func (e *Env) RequireDistinctHosts() error {
	if err := e.RequireHosts(2); err != nil {
		return err
	}
	if e.Info.HostName(0) == e.Info.HostName(1) {
		return Fail("host1 and host2 are both %s, need two different hosts", e.Info.HostName(0))
	}
	return nil
}

// Must runs cmd and fails the test on a non-zero exit.
func (e *Env) Must(ctx context.Context, h host.Host, cmd string, opts ...host.RunOption) (host.Result, error) {
	res, err := e.Runner.Run(ctx, h, cmd, opts...)
	if err != nil {
		return res, breverrors.WrapAndTrace(err)
	}
	if !res.OK() {
		return res, Fail("%s: %q exited %d", h.Name, cmd, res.ExitStatus)
	}
	return res, nil
}

// Print writes lines to the test's output stream.
func (e *Env) Print(lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(e.Out, l)
	}
}

type Registry struct {
	tests map[string]Test
}

func NewRegistry() *Registry {
	return &Registry{tests: map[string]Test{}}
}

// Register panics on a duplicate name, which is a wiring bug.
func (r *Registry) Register(tests ...Test) *Registry {
	for _, t := range tests {
		if _, ok := r.tests[t.Name()]; ok {
			panic(fmt.Sprintf("regtest %s registered twice", t.Name()))
		}
		r.tests[t.Name()] = t
	}
	return r
}

func (r *Registry) Lookup(name string) (Test, bool) {
	t, ok := r.tests[name]
	return t, ok
}

func (r *Registry) IsBuiltIn(name string) bool {
	_, ok := r.tests[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tests))
	for n := range r.tests {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes the named test and prints its FAIL banner on failure.
func (r *Registry) Run(ctx context.Context, name string, env *Env) error {
	t, ok := r.Lookup(name)
	if !ok {
		return breverrors.NewConfigError("no built-in test named %s", name)
	}
	env.Log.Logf(0, "Test: %s started", name)
	err := t.Run(ctx, env)
	if err != nil {
		env.Term.Fail(err.Error())
		env.Log.Log(0, "FAIL: "+err.Error())
	}
	return err
}
