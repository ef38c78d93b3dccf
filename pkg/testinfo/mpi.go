package testinfo

import (
	"context"
	"path"
	"regexp"
	"sort"

	"github.com/hashicorp/go-version"

	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// DefaultMPICandidates are the install prefixes MPI has shipped under on
// test images.
var DefaultMPICandidates = []string{
	"/usr/mpi/gcc/openmpi-1.6.5-qlc",
	"/usr/mpi/gcc/openmpi-1.8.2a1-hfi",
	"/usr/mpi/gcc/openmpi-1.10.2-hfi",
	"/usr/lib64/openmpi",
}

// Commander runs a buffered command on a host.
type Commander interface {
	Run(ctx context.Context, h host.Host, cmd string, opts ...host.RunOption) (host.Result, error)
}

type MPIPaths struct {
	Prefix string
	Lib    string
	Bin    string
}

var openmpiVersion = regexp.MustCompile(`openmpi-([0-9][0-9a-z.]*)`)

func mpiVersion(prefix string) *version.Version {
	m := openmpiVersion.FindStringSubmatch(path.Base(prefix))
	if m == nil {
		return nil
	}
	v, err := version.NewVersion(m[1])
	if err != nil {
		return nil
	}
	return v
}

// OrderMPICandidates sorts prefixes newest version first. Prefixes without a
// version keep their relative order after every versioned one.
func OrderMPICandidates(prefixes []string) []string {
	out := append([]string(nil), prefixes...)
	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := mpiVersion(out[i]), mpiVersion(out[j])
		switch {
		case vi == nil:
			return false
		case vj == nil:
			return true
		default:
			return vi.GreaterThan(vj)
		}
	})
	return out
}

func libDir(prefix string) string {
	if mpiVersion(prefix) == nil {
		return path.Join(prefix, "lib")
	}
	return path.Join(prefix, "lib64")
}

// ResolveMPI probes candidates on h, newest first, and returns the first
// prefix that has a bin directory. Nothing found is logged, not fatal.
func ResolveMPI(ctx context.Context, r Commander, h host.Host, candidates []string, log *testlog.Logger) (MPIPaths, bool) {
	for _, prefix := range OrderMPICandidates(candidates) {
		bin := path.Join(prefix, "bin")
		res, err := r.Run(ctx, h, "test -d "+bin)
		if err != nil || !res.OK() {
			continue
		}
		return MPIPaths{Prefix: prefix, Lib: libDir(prefix), Bin: bin}, true
	}
	if log != nil {
		log.Warnf("no MPI install found on %s", h.Name)
	}
	return MPIPaths{}, false
}

// OSUBenchmarkDir finds the prefix the OSU micro benchmarks are run from.
// An empty prefix means they are on the remote $PATH.
func OSUBenchmarkDir(ctx context.Context, r Commander, h host.Host) string {
	probes := []struct{ dir, prefix string }{
		{"/usr/local/libexec/osu-micro-benchmarks", "/usr/local/libexec/osu-micro-benchmarks/mpi/pt2pt/"},
		{"/usr/lib64/openmpi/bin", "/usr/lib64/openmpi/bin/mpitests-"},
	}
	for _, p := range probes {
		res, err := r.Run(ctx, h, "test -d "+p.dir)
		if err == nil && res.OK() {
			return p.prefix
		}
	}
	return ""
}
