package host

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/spf13/afero"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// Result of a remote command. A non-zero ExitStatus is not an error.
type Result struct {
	ExitStatus int
	Lines      []string
}

func (r Result) OK() bool {
	return r.ExitStatus == 0
}

type runOptions struct {
	asRoot bool
	tty    bool
}

type RunOption func(*runOptions)

// AsRoot logs in as root for this command only.
func AsRoot() RunOption {
	return func(o *runOptions) { o.asRoot = true }
}

// WithTTY allocates a remote tty so signals reach the remote process group.
func WithTTY() RunOption {
	return func(o *runOptions) { o.tty = true }
}

type Runner struct {
	exec Executor
	fs   afero.Fs
	log  *testlog.Logger
	key  []byte
}

func NewDefaultRunner(fs afero.Fs, log *testlog.Logger, key []byte) *Runner {
	return NewRunner(fs, ProcessExecutor{}, log, key)
}

func NewRunner(fs afero.Fs, executor Executor, log *testlog.Logger, key []byte) *Runner {
	return &Runner{
		exec: executor,
		fs:   fs,
		log:  log,
		key:  key,
	}
}

// BuildArgs is the ssh argv for cmd on h. keyPath replaces the identity
// file placeholder.
func BuildArgs(h Host, cmd string, keyPath string, opts ...RunOption) []string {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	target := h.DNSName
	if target == "" {
		target = h.Name
	}
	args := []string{"ssh"}
	switch {
	case h.ForceRoot || o.asRoot:
		args = append(args, "-l", "root")
	case h.User != "":
		args = append(args, "-l", h.User)
	}
	args = append(args, target, "-p", strconv.Itoa(h.Port))
	for _, opt := range h.sortedOptions() {
		args = append(args, "-o", opt)
	}
	identity := h.IdentityFile
	if identity == KeyFilePlaceholder {
		identity = keyPath
	}
	if identity != "" {
		args = append(args, "-i", identity)
	}
	if o.tty {
		args = append(args, "-t")
	}
	return append(args, cmd)
}

// Run blocks until cmd exits and returns every line it printed.
func (r *Runner) Run(ctx context.Context, h Host, cmd string, opts ...RunOption) (Result, error) {
	proc, cleanup, err := r.start(ctx, h, cmd, opts)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	data, readErr := io.ReadAll(proc.Output())
	status, err := exitStatus(proc.Wait())
	if err != nil {
		return Result{}, breverrors.WrapAndTrace(err, h.Label())
	}
	if readErr != nil {
		return Result{}, breverrors.WrapAndTrace(readErr, h.Label())
	}
	return Result{ExitStatus: status, Lines: SplitLines(string(data))}, nil
}

// Stream copies output to w a byte at a time as it arrives and returns the
// exit status once cmd exits.
func (r *Runner) Stream(ctx context.Context, h Host, cmd string, w io.Writer, opts ...RunOption) (int, error) {
	proc, cleanup, err := r.start(ctx, h, cmd, opts)
	if err != nil {
		return -1, err
	}
	defer cleanup()

	// wrap so io.CopyBuffer can't bypass the one byte buffer via WriterTo
	_, copyErr := io.CopyBuffer(w, struct{ io.Reader }{proc.Output()}, make([]byte, 1))
	status, err := exitStatus(proc.Wait())
	if err != nil {
		return -1, breverrors.WrapAndTrace(err, h.Label())
	}
	if copyErr != nil {
		return status, breverrors.WrapAndTrace(copyErr, h.Label())
	}
	return status, nil
}

// RunFor starts cmd, collects output for d and returns status 0 with the
// partial output. The remote command is left running; stop it with
// KillByName.
func (r *Runner) RunFor(ctx context.Context, h Host, cmd string, d time.Duration, opts ...RunOption) (Result, error) {
	task, err := r.Start(ctx, h, cmd, opts...)
	if err != nil {
		return Result{}, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-task.Done():
	}
	return Result{ExitStatus: 0, Lines: task.Output()}, nil
}

// KillByName signals every process called name on h.
func (r *Runner) KillByName(ctx context.Context, h Host, signal string, name string) (Result, error) {
	return r.Run(ctx, h, fmt.Sprintf("killall -%s %s", signal, name), AsRoot())
}

func (r *Runner) start(ctx context.Context, h Host, cmd string, opts []RunOption) (Process, func(), error) {
	keyPath, cleanup, err := r.materializeKey(h)
	if err != nil {
		return nil, nil, err
	}
	argv := BuildArgs(h, cmd, keyPath, opts...)
	if r.log != nil {
		r.log.Logf(0, "[%s] %s", h.Name, cmd)
	}
	proc, err := r.exec.Start(ctx, argv)
	if err != nil {
		cleanup()
		return nil, nil, breverrors.WrapAndTrace(err, "ssh to", h.Label())
	}
	return proc, cleanup, nil
}

// materializeKey writes the key to a temp file scoped to one invocation.
// Sharing one file across commands breaks when a forked test removes it.
func (r *Runner) materializeKey(h Host) (string, func(), error) {
	if h.IdentityFile != KeyFilePlaceholder {
		return "", func() {}, nil
	}
	if len(r.key) == 0 {
		return "", nil, breverrors.NewConfigError("host %s needs simulator key material but none is configured (--simics-key)", h.Name)
	}
	f, err := afero.TempFile(r.fs, "", "hfi-regress-key-")
	if err != nil {
		return "", nil, breverrors.WrapAndTrace(err)
	}
	name := f.Name()
	cleanup := func() { _ = r.fs.Remove(name) }
	if _, err := f.Write(r.key); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, breverrors.WrapAndTrace(err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, breverrors.WrapAndTrace(err)
	}
	if err := r.fs.Chmod(name, 0o600); err != nil {
		cleanup()
		return "", nil, breverrors.WrapAndTrace(err)
	}
	return name, cleanup, nil
}

// SplitLines splits output on newlines without a trailing empty element.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// KillMatching signals every process whose full command line matches
// pattern. Use it instead of KillByName when the process name is shared
// with the caller.
func (r *Runner) KillMatching(ctx context.Context, h Host, signal string, pattern string) (Result, error) {
	return r.Run(ctx, h, fmt.Sprintf("pkill -%s -f %s", signal, shellescape.Quote(pattern)), AsRoot())
}
