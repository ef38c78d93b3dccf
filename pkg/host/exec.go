package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a started command whose stdout and stderr share one stream.
type Process interface {
	Output() io.Reader
	Wait() error
}

type Executor interface {
	Start(ctx context.Context, argv []string) (Process, error)
}

type ProcessExecutor struct{}

func (ProcessExecutor) Start(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command provided")
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by runner
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = w
	cmd.Stderr = w
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, err //nolint:wrapcheck // wrapped by runner
	}
	// the child holds its own copy of the write end
	_ = w.Close()
	return &osProcess{cmd: cmd, out: r}, nil
}

type osProcess struct {
	cmd *exec.Cmd
	out *os.File
}

func (p *osProcess) Output() io.Reader {
	return p.out
}

func (p *osProcess) Wait() error {
	err := p.cmd.Wait()
	_ = p.out.Close()
	return err //nolint:wrapcheck // exit status is decoded by caller
}

type exitCoder interface {
	ExitCode() int
}

// exitStatus maps a Wait error to the remote exit status. Only failures
// that are not an exit status come back as errors.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode(), nil
	}
	return -1, err
}
