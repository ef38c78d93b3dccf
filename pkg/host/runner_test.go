package host

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

func quietLog() *testlog.Logger {
	return testlog.New(io.Discard, testlog.DefaultVerbosity)
}

func TestBuildArgsOrdersOptions(t *testing.T) {
	h := Host{
		Name:         "viper0",
		DNSName:      "localhost",
		Port:         4022,
		IdentityFile: KeyFilePlaceholder,
		Options:      DefaultOptions(),
		ForceRoot:    true,
	}

	args := BuildArgs(h, "uname -a", "/tmp/key", WithTTY())
	require.Equal(t, []string{
		"ssh",
		"-l", "root",
		"localhost",
		"-p", "4022",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-i", "/tmp/key",
		"-t",
		"uname -a",
	}, args)
}

func TestBuildArgsUserAndAsRoot(t *testing.T) {
	h := Host{Name: "node1", Port: 22, User: "tester"}

	require.Equal(t, []string{"ssh", "-l", "tester", "node1", "-p", "22", "true"}, BuildArgs(h, "true", ""))
	require.Equal(t, []string{"ssh", "-l", "root", "node1", "-p", "22", "true"}, BuildArgs(h, "true", "", AsRoot()))
}

func TestRunBufferedSplitsLines(t *testing.T) {
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return done("first\nsecond\n", 0) }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	res, err := r.Run(context.Background(), Host{Name: "node1", Port: 22}, "printf 'first\\nsecond\\n'")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, []string{"first", "second"}, res.Lines)
}

func TestRunNonZeroIsNotAnError(t *testing.T) {
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return done("rmmod: ERROR: Module hfi1 is in use\n", 1) }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	res, err := r.Run(context.Background(), Host{Name: "node1", Port: 22}, "rmmod hfi1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitStatus)
	assert.False(t, res.OK())
}

func TestKeyMaterializedPerInvocation(t *testing.T) {
	fs := afero.NewMemMapFs()
	var keyPaths []string
	exec := &scriptedExecutor{respond: func(argv []string) *fakeProcess {
		for i, a := range argv {
			if a == "-i" {
				path := argv[i+1]
				keyPaths = append(keyPaths, path)
				data, err := afero.ReadFile(fs, path)
				if err != nil || string(data) != "PEM" {
					return done("key missing", 255)
				}
			}
		}
		return done("ok\n", 0)
	}}
	r := NewRunner(fs, exec, quietLog(), []byte("PEM"))
	h := Host{Name: "viper0", DNSName: "localhost", Port: 4022, IdentityFile: KeyFilePlaceholder}

	for i := 0; i < 2; i++ {
		res, err := r.Run(context.Background(), h, "true")
		require.NoError(t, err)
		require.Equal(t, 0, res.ExitStatus)
	}

	require.Len(t, keyPaths, 2)
	assert.NotEqual(t, keyPaths[0], keyPaths[1])
	for _, p := range keyPaths {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, exists, "key file %s should be removed after the command", p)
	}
}

func TestMissingKeyMaterial(t *testing.T) {
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return done("", 0) }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	_, err := r.Run(context.Background(), Host{Name: "viper0", IdentityFile: KeyFilePlaceholder}, "true")
	require.Error(t, err)
	assert.IsType(t, breverrors.ConfigError{}, err)
	assert.Equal(t, 0, exec.count())
}

func TestStreamForwardsOutput(t *testing.T) {
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return done("tracing...\nline 2\n", 2) }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	var out bytes.Buffer
	status, err := r.Stream(context.Background(), Host{Name: "node1"}, "cat trace_pipe", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, status)
	assert.Equal(t, "tracing...\nline 2\n", out.String())
}

func TestRunForLeavesCommandRunning(t *testing.T) {
	pr, pw := io.Pipe()
	release := make(chan struct{})
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess {
		return &fakeProcess{out: pr, block: release}
	}}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	go func() { _, _ = pw.Write([]byte("listening on hfi1_0\n")) }()

	res, err := r.RunFor(context.Background(), Host{Name: "node1"}, "SnoopLocal", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, []string{"listening on hfi1_0"}, res.Lines)

	// the listener is still running until something kills it
	_ = pw.Close()
	close(release)
}

func TestTaskWaitTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return &fakeProcess{out: pr} }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	task, err := r.Start(context.Background(), Host{Name: "node1"}, "ib_write_bw -d hfi1_0")
	require.NoError(t, err)

	_, err = task.Wait(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrTaskTimeout)

	_, _ = pw.Write([]byte("done\n"))
	_ = pw.Close()
	res, err := task.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, res.Lines)
}

func TestTaskDrainsOutputAfterOverlongLine(t *testing.T) {
	pr, pw := io.Pipe()
	exited := make(chan struct{})
	exec := &scriptedExecutor{respond: func([]string) *fakeProcess { return &fakeProcess{out: pr, block: exited} }}
	r := NewRunner(afero.NewMemMapFs(), exec, quietLog(), nil)

	go func() {
		defer close(exited)
		_, _ = pw.Write(append(bytes.Repeat([]byte("x"), 2*1024*1024), '\n'))
		_, _ = pw.Write([]byte("after\n"))
		_ = pw.Close()
	}()

	task, err := r.Start(context.Background(), Host{Name: "node1"}, "hfidiags dump")
	require.NoError(t, err)
	res, err := task.Wait(context.Background(), 5*time.Second)
	require.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Empty(t, res.Lines)
	select {
	case <-task.Done():
	default:
		t.Fatal("task not done after Wait returned")
	}
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a"}, SplitLines("a"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\r\n"))
}
