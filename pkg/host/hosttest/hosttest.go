// Package hosttest provides a scripted host.Executor for tests that drive
// remote commands without ssh.
package hosttest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/brevdev/hfi-regress/pkg/host"
)

// Reply is what one remote invocation prints and exits with.
type Reply struct {
	Output string
	Status int
	// Block holds the process open until closed or the context ends.
	Block <-chan struct{}
	// Do runs when the reply is handed out.
	Do func()
}

func OK(output string) Reply {
	return Reply{Output: output}
}

func Exit(status int) Reply {
	return Reply{Status: status}
}

type Call struct {
	Host    string
	Command string
	Argv    []string
}

type rule struct {
	match   string
	replies []Reply
	served  int
}

// Executor answers each ssh invocation from the first rule whose pattern
// is a substring of the remote command. Successive calls walk the rule's
// replies and repeat the last one.
type Executor struct {
	// Default answers commands no rule matches.
	Default Reply

	mu    sync.Mutex
	rules []*rule
	calls []Call
}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) On(match string, replies ...Reply) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(replies) == 0 {
		replies = []Reply{{}}
	}
	e.rules = append(e.rules, &rule{match: match, replies: replies})
	return e
}

func (e *Executor) Start(ctx context.Context, argv []string) (host.Process, error) {
	if len(argv) < 2 {
		return nil, fmt.Errorf("not an ssh argv: %v", argv)
	}
	call := Call{Host: target(argv), Command: argv[len(argv)-1], Argv: argv}

	e.mu.Lock()
	e.calls = append(e.calls, call)
	reply := e.Default
	for _, r := range e.rules {
		if !strings.Contains(call.Command, r.match) {
			continue
		}
		i := r.served
		if i >= len(r.replies) {
			i = len(r.replies) - 1
		}
		r.served++
		reply = r.replies[i]
		break
	}
	e.mu.Unlock()

	if reply.Do != nil {
		reply.Do()
	}
	return &process{ctx: ctx, out: strings.NewReader(reply.Output), status: reply.Status, block: reply.Block}, nil
}

func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Commands lists the remote commands sent to hostName, in order.
func (e *Executor) Commands(hostName string) []string {
	var cmds []string
	for _, c := range e.Calls() {
		if c.Host == hostName {
			cmds = append(cmds, c.Command)
		}
	}
	return cmds
}

// Count is how many commands contained match.
func (e *Executor) Count(match string) int {
	n := 0
	for _, c := range e.Calls() {
		if strings.Contains(c.Command, match) {
			n++
		}
	}
	return n
}

func target(argv []string) string {
	i := 1
	if argv[i] == "-l" {
		i += 2
	}
	if i >= len(argv) {
		return ""
	}
	return argv[i]
}

type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitStatus) ExitCode() int { return int(e) }

type process struct {
	ctx    context.Context
	out    io.Reader
	status int
	block  <-chan struct{}
}

func (p *process) Output() io.Reader {
	return p.out
}

func (p *process) Wait() error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
	if p.status != 0 {
		return exitStatus(p.status)
	}
	return nil
}
