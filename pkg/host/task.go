package host

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var ErrTaskTimeout = errors.New("task did not finish in time")

// Task is a remote command running in the background. Dropping a Task does
// not stop the remote process.
type Task struct {
	Host    Host
	Command string

	mu     sync.Mutex
	lines  []string
	status int
	err    error
	done   chan struct{}
}

// Start launches cmd without waiting for it. Cancelling ctx after Start
// returns does not kill the command.
func (r *Runner) Start(ctx context.Context, h Host, cmd string, opts ...RunOption) (*Task, error) {
	proc, cleanup, err := r.start(context.WithoutCancel(ctx), h, cmd, opts)
	if err != nil {
		return nil, err
	}
	t := &Task{Host: h, Command: cmd, done: make(chan struct{})}
	go t.collect(proc, cleanup)
	return t, nil
}

func (t *Task) collect(proc Process, cleanup func()) {
	defer close(t.done)
	defer cleanup()

	scanner := bufio.NewScanner(proc.Output())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		t.mu.Lock()
		t.lines = append(t.lines, trimCR(line))
		t.mu.Unlock()
	}
	if scanner.Err() != nil {
		// keep the pipe moving or the remote side never exits
		_, _ = io.Copy(io.Discard, proc.Output())
	}
	status, err := exitStatus(proc.Wait())
	if err == nil {
		err = scanner.Err()
	}
	t.mu.Lock()
	t.status = status
	t.err = err
	t.mu.Unlock()
}

// Output is a copy of the lines collected so far.
func (t *Task) Output() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait joins the task. On timeout it returns the partial output together
// with ErrTaskTimeout and the task keeps running.
func (t *Task) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		return Result{ExitStatus: -1, Lines: t.Output()}, ErrTaskTimeout
	case <-ctx.Done():
		return Result{ExitStatus: -1, Lines: t.Output()}, ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return Result{ExitStatus: t.status, Lines: append([]string(nil), t.lines...)}, t.err
}

func trimCR(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\r' {
		return s[:n-1]
	}
	return s
}
