// Package schedule reruns harness passes on a cron spec until the process
// is told to stop, optionally detached as a daemon.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cron "github.com/robfig/cron/v3"
	"github.com/sevlyar/go-daemon"
	"github.com/spf13/afero"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

type Job interface {
	Name() string
	Run() error
	Spec() Spec
}

type Spec struct {
	Cron   string // "" runs once; https://pkg.go.dev/github.com/robfig/cron/v3#hdr-CRON_Expression_Format
	RunNow bool   // only applied if Cron is set
}

// FuncJob adapts a function to Job.
type FuncJob struct {
	JobName string
	JobSpec Spec
	Fn      func() error
}

func (f FuncJob) Name() string { return f.JobName }
func (f FuncJob) Run() error   { return f.Fn() }
func (f FuncJob) Spec() Spec   { return f.JobSpec }

type Scheduler struct {
	Jobs        []Job
	Log         *testlog.Logger
	StopSignals chan os.Signal
}

func NewScheduler(log *testlog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		Jobs:        jobs,
		Log:         log,
		StopSignals: make(chan os.Signal, 1),
	}
}

func (s *Scheduler) logErr(j Job) func() {
	return func() {
		s.Log.Logf(1, "%s: run started", j.Name())
		if err := j.Run(); err != nil {
			s.Log.Errorf("%s: %v", j.Name(), err)
			return
		}
		s.Log.Logf(1, "%s: run finished", j.Name())
	}
}

// Run blocks until a stop signal arrives and the running jobs drain.
func (s *Scheduler) Run() error {
	c := cron.New()
	for _, j := range s.Jobs {
		spec := j.Spec()
		if spec.Cron == "" {
			s.logErr(j)()
			continue
		}
		e, err := c.AddFunc(spec.Cron, s.logErr(j))
		if err != nil {
			return breverrors.NewConfigError("%s: bad cron spec %q: %v", j.Name(), spec.Cron, err)
		}
		if spec.RunNow {
			c.Entry(e).Job.Run()
		}
	}

	c.Start()
	s.WaitTillSignal(c.Stop)
	s.Log.Log(1, "stopped")
	return nil
}

func (s *Scheduler) WaitTillSignal(stop func() context.Context) {
	signal.Notify(s.StopSignals, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT)
	defer signal.Stop(s.StopSignals)
	<-s.StopSignals
	s.Log.Log(1, "stopping")
	<-stop().Done()
}

// SendStop asks Run to return. Repeated calls while a stop is pending are
// dropped.
func (s *Scheduler) SendStop() {
	select {
	case s.StopSignals <- syscall.SIGQUIT:
	default:
	}
}

type DaemonFiles struct {
	PidFile string
	LogFile string
}

func DaemonPaths(dir string) DaemonFiles {
	return DaemonFiles{
		PidFile: filepath.Join(dir, "hfi-regress.pid"),
		LogFile: filepath.Join(dir, "hfi-regress.log"),
	}
}

// RunAsDaemon detaches and runs s in the child. The parent returns as soon
// as the child is started; a second daemon on the same pid file is a no-op.
func RunAsDaemon(s *Scheduler, fs afero.Fs, t *terminal.Terminal, dir string) error {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return breverrors.WrapAndTrace(err)
	}
	files := DaemonPaths(dir)
	cntxt := &daemon.Context{
		PidFileName: files.PidFile,
		PidFilePerm: 0o644,
		LogFileName: files.LogFile,
		LogFilePerm: 0o640,
		WorkDir:     dir,
		Umask:       0o27,
	}

	t.Vprint(fmt.Sprintf("PID File: %s", files.PidFile))
	t.Vprint(fmt.Sprintf("Log File: %s", files.LogFile))

	d, err := cntxt.Reborn()
	if err != nil {
		if errors.Is(err, daemon.ErrWouldBlock) {
			t.Vprint(t.Yellow("daemon already running"))
			return nil
		}
		return breverrors.WrapAndTrace(err)
	}
	if d != nil {
		return nil
	}
	defer cntxt.Release() //nolint:errcheck // pid file is removed best effort

	s.Log.Log(0, "- - - - - - - - - - - - - - -")
	s.Log.Log(0, "daemon started")
	return s.Run()
}
