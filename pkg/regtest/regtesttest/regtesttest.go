// Package regtesttest builds leaf test environments backed by a scripted
// executor and an in-memory filesystem.
package regtesttest

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/host/hosttest"
	"github.com/brevdev/hfi-regress/pkg/regtest"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

const (
	SrcDir   = "/src/hfi"
	TestsDir = "/src/hfi/test/tests"
	Self     = "/opt/hfi-regress/bin/hfi-regress"
)

// Now is the fixed clock every environment starts with.
var Now = time.Date(2016, time.March, 14, 9, 26, 0, 0, time.UTC)

type Harness struct {
	Env  *regtest.Env
	Exec *hosttest.Executor
	Out  *Buffer

	mu     sync.Mutex
	pauses []time.Duration
}

// Pauses are the sleeps the test asked for, in order.
func (h *Harness) Pauses() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.pauses...)
}

// Options are physical two-host defaults so no key material is needed.
func Options() testinfo.Options {
	opts := testinfo.DefaultOptions()
	opts.NodeList = "node1,node2"
	opts.HfiSrc = SrcDir
	return opts
}

// New parses opts against a filesystem holding SrcDir and wires an Env
// whose sleeps are recorded instead of taken.
func New(t testing.TB, opts testinfo.Options) *Harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(TestsDir, 0o755))
	ti, err := testinfo.Parse(opts, testinfo.Deps{Fs: fs, Cwd: "/work", Home: "/home/tester"})
	require.NoError(t, err)

	out := &Buffer{}
	exec := hosttest.New()
	log := testlog.New(out, testlog.DefaultVerbosity)
	h := &Harness{Exec: exec, Out: out}
	h.Env = &regtest.Env{
		Info:     ti,
		Runner:   host.NewRunner(fs, exec, log, ti.Key()),
		Log:      log,
		Term:     terminal.NewWithWriters(out, out),
		Fs:       fs,
		Out:      out,
		Self:     Self,
		TestsDir: TestsDir,
		Now:      func() time.Time { return Now },
		Sleep: func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			h.pauses = append(h.pauses, d)
			h.mu.Unlock()
			return nil
		},
	}
	return h
}

// Buffer is a bytes.Buffer safe for the concurrent writers a leaf test
// spawns.
type Buffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
