// Package ibverbsperf runs the perftest verbs benchmarks between the first
// two hosts over their IPoIB names and keeps every report.
package ibverbsperf

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/brevdev/hfi-regress/pkg/adapters"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/regtest"
)

const (
	Name = "IbVerbsPerf"

	// ListenPort is where every perftest server waits for its client.
	ListenPort = 18515
	commonOpts = "-R -n 5000 -a"
	ipoib      = "ib_ipoib"
	// perftest runs pinned to one core so numbers are comparable run to run
	pinning = "taskset -c 4"
)

type Benchmark struct {
	Name  string
	Tool  string
	Flags string
}

var Benchmarks = []Benchmark{
	{Name: "ib_write_bw", Tool: "ib_write_bw"},
	{Name: "ib_read_bw", Tool: "ib_read_bw"},
	{Name: "ib_write_bw_bidir", Tool: "ib_write_bw", Flags: "-b"},
	{Name: "ib_read_bw_bidir", Tool: "ib_read_bw", Flags: "-b"},
	{Name: "ib_send_lat", Tool: "ib_send_lat"},
	{Name: "ib_read_lat", Tool: "ib_read_lat"},
}

var (
	ListenAttempts = 10
	ListenInterval = time.Second
	ServerTimeout  = 5 * time.Minute
	IPoIBSettle    = 10 * time.Second
)

type Test struct{}

func New() Test { return Test{} }

func (Test) Name() string { return Name }

func (Test) Run(ctx context.Context, env *regtest.Env) error {
	if err := env.RequireDistinctHosts(); err != nil {
		return err
	}
	server, client := env.Info.Host(0), env.Info.Host(1)

	outDir := "ibv_perf." + env.Timestamp("200601021504")
	exists, err := afero.Exists(env.Fs, outDir)
	if err != nil {
		return breverrors.WrapAndTrace(err)
	}
	if exists {
		return regtest.Fail("output directory %s already exists", outDir)
	}
	if err := env.Fs.MkdirAll(outDir, 0o755); err != nil {
		return breverrors.WrapAndTrace(err)
	}

	loaded, err := ensureIPoIB(ctx, env, server, client)
	if err != nil {
		return err
	}
	for _, h := range []host.Host{server, client} {
		if _, err := env.Must(ctx, h, "ifup ib0", host.AsRoot()); err != nil {
			return err
		}
	}

	var result *multierror.Error
	for _, b := range Benchmarks {
		if err := runWithRetry(ctx, env, server, client, b, outDir); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if loaded {
		for _, h := range []host.Host{server, client} {
			if _, err := env.Runner.Run(ctx, h, "modprobe -r "+ipoib, host.AsRoot()); err != nil {
				env.Log.Warnf("could not unload %s on %s: %v", ipoib, h.Name, err)
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return regtest.Fail("%d benchmark(s) failed: %v", len(result.Errors), err)
	}
	return env.Pass("All verbs benchmarks completed, reports in " + outDir)
}

// ensureIPoIB loads ib_ipoib on both hosts when either lacks it and
// reports whether it did, so the caller can put things back.
func ensureIPoIB(ctx context.Context, env *regtest.Env, hosts ...host.Host) (bool, error) {
	missing := false
	for _, h := range hosts {
		res, err := env.Must(ctx, h, "lsmod", host.AsRoot())
		if err != nil {
			return false, err
		}
		if !adapters.ModuleLoaded(res.Lines, ipoib) {
			missing = true
		}
	}
	if !missing {
		return false, nil
	}
	for _, h := range hosts {
		if _, err := env.Must(ctx, h, "modprobe "+ipoib, host.AsRoot()); err != nil {
			return false, err
		}
	}
	env.Log.Logf(0, "Loaded %s, waiting for the interfaces to settle", ipoib)
	return true, env.Pause(ctx, IPoIBSettle)
}

func (b Benchmark) command(env *regtest.Env) string {
	perf := strings.TrimSuffix(env.Info.PerfPath(), "/") + "/"
	cmd := fmt.Sprintf("%s %s%s -d %s %s", pinning, perf, b.Tool, env.Info.Device(), commonOpts)
	if b.Flags != "" {
		cmd += " " + b.Flags
	}
	return cmd
}

func runWithRetry(ctx context.Context, env *regtest.Env, server, client host.Host, b Benchmark, outDir string) error {
	err := runPair(ctx, env, server, client, b, outDir)
	if err == nil {
		return nil
	}
	env.Log.Warnf("%s failed (%v), clearing stale servers and retrying", b.Name, err)
	killAll(ctx, env, server, client)
	if err := runPair(ctx, env, server, client, b, outDir); err != nil {
		killAll(ctx, env, server, client)
		return fmt.Errorf("%s: %w", b.Name, err)
	}
	return nil
}

func killAll(ctx context.Context, env *regtest.Env, hosts ...host.Host) {
	tools := []string{"ib_write_bw", "ib_read_bw", "ib_send_lat", "ib_read_lat"}
	for _, h := range hosts {
		for _, tool := range tools {
			// nothing to kill is the common case
			_, _ = env.Runner.KillByName(ctx, h, "9", tool)
		}
	}
}

func runPair(ctx context.Context, env *regtest.Env, server, client host.Host, b Benchmark, outDir string) error {
	cmd := b.command(env)
	env.Log.Logf(0, "Running %s", b.Name)
	task, err := env.Runner.Start(ctx, server, cmd)
	if err != nil {
		return err
	}
	listening, err := env.Runner.WaitForPort(ctx, server, ListenPort, "LISTEN", env.Policy(ListenAttempts, ListenInterval), 1)
	if err != nil {
		return err
	}
	if !listening {
		return fmt.Errorf("%s server on %s never listened on %d", b.Tool, server.Name, ListenPort)
	}

	var serverRes, clientRes host.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		serverRes, err = task.Wait(gctx, ServerTimeout)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if !serverRes.OK() {
			return fmt.Errorf("server exited %d", serverRes.ExitStatus)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		clientRes, err = env.Runner.Run(gctx, client, b.clientCommand(cmd, server))
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		if !clientRes.OK() {
			return fmt.Errorf("client exited %d", clientRes.ExitStatus)
		}
		return nil
	})
	runErr := g.Wait()

	if err := writeReport(env.Fs, outDir, b.Name+".server", serverRes.Lines); err != nil {
		return err
	}
	if err := writeReport(env.Fs, outDir, b.Name+".client", clientRes.Lines); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	rows, err := adapters.ParsePerftest(clientRes.Lines)
	if err != nil {
		return fmt.Errorf("%s report: %w", b.Name, err)
	}
	last := rows[len(rows)-1]
	env.Log.Logf(0, "%s: %d sizes, largest %d bytes %v", b.Name, len(rows), last.Bytes, last.Values)
	fetchJSONReport(ctx, env, client, b, outDir)
	return nil
}

// JSONReport is where the client leaves its --out_json report.
func (b Benchmark) JSONReport() string {
	return "/tmp/hfi-regress." + b.Name + ".json"
}

func (b Benchmark) clientCommand(cmd string, server host.Host) string {
	return fmt.Sprintf("%s --out_json --out_json_file=%s %s-ib", cmd, b.JSONReport(), server.Name)
}

// fetchJSONReport copies the client's json report next to the text ones.
// Older perftest builds write none, which only costs the extra file.
func fetchJSONReport(ctx context.Context, env *regtest.Env, client host.Host, b Benchmark, outDir string) {
	res, err := env.Runner.Run(ctx, client, fmt.Sprintf("cat %[1]s && rm -f %[1]s", b.JSONReport()))
	if err != nil || !res.OK() {
		env.Log.Logf(1, "%s: no json report on %s", b.Name, client.Name)
		return
	}
	data := strings.Join(res.Lines, "\n")
	row, err := adapters.ParsePerftestJSON([]byte(data))
	if err != nil {
		env.Log.Warnf("%s: %v", b.Name, err)
		return
	}
	if err := writeReport(env.Fs, outDir, b.Name+".json", res.Lines); err != nil {
		env.Log.Warnf("%s: %v", b.Name, err)
		return
	}
	env.Log.Logf(0, "%s: json report %d bytes %v", b.Name, row.Bytes, row.Values)
}

func writeReport(fs afero.Fs, dir string, name string, lines []string) error {
	p := filepath.Join(dir, name)
	data := strings.Join(lines, "\n")
	if data != "" {
		data += "\n"
	}
	if err := afero.WriteFile(fs, p, []byte(data), 0o644); err != nil {
		return breverrors.WrapAndTrace(err)
	}
	return nil
}
