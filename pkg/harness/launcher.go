package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/config"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

// Launcher runs one test process to completion and returns its exit status.
type Launcher interface {
	Launch(ctx context.Context, argv []string) (int, error)
}

// ProcessLauncher runs tests as child processes sharing the harness's
// stdout and stderr.
type ProcessLauncher struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

var _ Launcher = ProcessLauncher{}

func (l ProcessLauncher) Launch(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("no command to launch")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // test commands come from the catalog
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Env = l.Env
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, breverrors.WrapAndTrace(err)
}

// Resolver turns an entry and its materialized arguments into an argv.
// Built-in tests re-run this binary as `<self> test <name>`; anything else
// is a script under TestsDir.
type Resolver struct {
	Self     string
	TestsDir string
	BuiltIn  func(name string) bool
}

func (r Resolver) Command(e catalog.Entry, args string) ([]string, error) {
	words, err := shellquote.Split(args)
	if err != nil {
		return nil, breverrors.WrapAndTrace(err, "splitting arguments of", e.Name)
	}
	if r.BuiltIn != nil && r.BuiltIn(e.Exe) {
		return append([]string{r.Self, "test", e.Exe}, words...), nil
	}
	return append([]string{filepath.Join(r.TestsDir, e.Exe)}, words...), nil
}

// DefaultTestsDir is where external test scripts live in the driver tree.
func DefaultTestsDir(hfiSrc string) string {
	return filepath.Join(hfiSrc, "test", "tests")
}

// ChildEnv carries the options that are not part of a catalog template
// down to child test processes through HFI_REGRESS_* variables.
func ChildEnv(base []string, opts testinfo.Options) []string {
	env := append([]string(nil), base...)
	set := func(flag string, value string) {
		if value != "" {
			env = append(env, config.EnvKey(flag)+"="+value)
		}
	}
	set(testinfo.FlagSimicsKey, opts.SimicsKey)
	set(testinfo.FlagSSHConfig, opts.SSHConfig)
	set(testinfo.FlagDevice, opts.Device)
	set(testinfo.FlagVerbosity, strconv.Itoa(opts.Verbosity))
	set(testinfo.FlagPerfPath, opts.PerfPath)
	set(testinfo.FlagPerfDir, opts.PerfDir)
	set(testinfo.FlagBaseDir, opts.BaseDir)
	if opts.ForceRoot {
		set(testinfo.FlagForceRoot, "true")
	}
	if opts.LogDir != "" {
		set(testinfo.FlagLogDir, opts.LogDir)
		// children continue the harness's log file
		set(testinfo.FlagLogAppend, "true")
	}
	return env
}

// SelfPath is the running binary, used to launch built-in tests.
func SelfPath() (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", breverrors.WrapAndTrace(err)
	}
	return self, nil
}
