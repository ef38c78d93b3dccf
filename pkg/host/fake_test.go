package host

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type fakeExit int

func (e fakeExit) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e fakeExit) ExitCode() int { return int(e) }

type fakeProcess struct {
	out   io.Reader
	err   error
	block chan struct{}
}

func (p *fakeProcess) Output() io.Reader { return p.out }

func (p *fakeProcess) Wait() error {
	if p.block != nil {
		<-p.block
	}
	return p.err
}

func done(output string, status int) *fakeProcess {
	var err error
	if status != 0 {
		err = fakeExit(status)
	}
	return &fakeProcess{out: strings.NewReader(output), err: err}
}

// scriptedExecutor hands out processes from respond and records every argv.
type scriptedExecutor struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(argv []string) *fakeProcess
}

func (s *scriptedExecutor) Start(_ context.Context, argv []string) (Process, error) {
	s.mu.Lock()
	s.calls = append(s.calls, argv)
	s.mu.Unlock()
	return s.respond(argv), nil
}

func (s *scriptedExecutor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func remoteCmd(argv []string) string {
	return argv[len(argv)-1]
}
