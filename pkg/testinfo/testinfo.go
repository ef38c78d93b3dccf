// Package testinfo parses the option surface every harness and leaf test
// process shares into a read-only TestInfo.
package testinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/host"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

const (
	DefaultNodeList   = "viper0,viper1"
	DefaultTestPktDir = "/usr/share/hfi-diagtools-sw/test_packets"
	DefaultPerfPath   = "/usr/bin"
	DefaultDevice     = "hfi1_0"
	DefaultSM         = "detect"
	DefaultType       = "default"
	DefaultVerbosity  = testlog.DefaultVerbosity

	// Sentinel for --psm and --sw-diags: the library is already on the
	// remote $PATH.
	Sentinel = "DEFAULT"

	// simulated hosts mount the workstation filesystem under this prefix
	simulatedMount = "/host"
)

var SMModes = []string{"opensm", "ifs_fm", "detect", "none", "remote"}

// simulated host name -> forwarded ssh port on localhost
var simulatedHosts = map[string]int{
	"viper0": 4022,
	"viper1": 5022,
}

const (
	mpiPSMOpts   = " --mca mtl psm -x HFI_UNIT=0 -x HFI_PORT=1 -x xxxPSM_CHECKSUM=1 -x PSM_TID=0 -x PSM_SDMA=0 -x"
	mpiVerbsOpts = " --mca btl sm,openib,self --mca mtl ^psm -mca btl_openib_max_inline_data 0 --mca btl_openib_warn_no_device_params_found 0 -x"
)

// Deps are the process-level inputs Parse needs besides the options.
type Deps struct {
	Fs      afero.Fs
	Cwd     string
	Home    string
	GitRoot func(dir string) (string, error)
}

func DefaultDeps() Deps {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return Deps{
		Fs:      afero.NewOsFs(),
		Cwd:     cwd,
		Home:    home,
		GitRoot: GitRoot,
	}
}

type TestInfo struct {
	hosts      []host.Host
	simulated  bool
	qib        bool
	fpga       bool
	forceRoot  bool
	mpiVerbs   bool
	hfiSrc     string
	linuxSrc   string
	kbuildDir  string
	psmLib     string
	psmOpts    string
	diagLib    string
	testPktDir string
	rawParams  string
	params     []*orderedmap.OrderedMap[string, string]
	extraArgs  string
	sm         string
	baseDir    string
	types      []string
	typesSet   bool
	testList   []string
	listOnly   bool
	np         int
	perfPath   string
	perfDir    string
	device     string
	key        []byte
	opts       Options
}

// Parse validates opts. Every problem is a ConfigError: a path that does
// not exist, an unknown SM mode, a node list the environment cannot serve.
func Parse(opts Options, deps Deps) (*TestInfo, error) {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	ti := &TestInfo{
		simulated: opts.Simics,
		qib:       opts.Qib,
		fpga:      opts.FPGA,
		forceRoot: opts.ForceRoot,
		mpiVerbs:  opts.MPIVerbs,
		psmOpts:   opts.PsmOpts,
		rawParams: strings.TrimSpace(opts.ModParams),
		extraArgs: opts.Args,
		baseDir:   opts.BaseDir,
		listOnly:  opts.List,
		device:    lo.Ternary(opts.Device == "", DefaultDevice, opts.Device),
		typesSet:  opts.TypesExplicit,
		opts:      opts,
	}

	names := splitList(lo.Ternary(opts.NodeList == "", DefaultNodeList, opts.NodeList))
	if len(names) == 0 {
		return nil, breverrors.NewConfigError("node list is empty")
	}
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, breverrors.NewConfigError("node %s listed more than once", strings.Join(dups, ","))
	}
	if lo.SomeBy(names, isSimulatedHost) {
		ti.simulated = true
	}
	hosts, err := buildHosts(names, ti.simulated, opts.ForceRoot)
	if err != nil {
		return nil, err
	}
	if opts.SSHConfig != "" && !ti.simulated {
		hosts, err = host.ApplySSHConfig(deps.Fs, absPath(deps.Cwd, opts.SSHConfig), deps.Home, hosts)
		if err != nil {
			return nil, breverrors.NewConfigError("ssh config %s: %v", opts.SSHConfig, err)
		}
	}
	ti.hosts = hosts

	if err := ti.parsePaths(opts, deps); err != nil {
		return nil, err
	}

	ti.sm = lo.Ternary(opts.SM == "", DefaultSM, opts.SM)
	if !lo.Contains(SMModes, ti.sm) {
		return nil, breverrors.NewConfigError("unknown sm %q, valid values are %s", ti.sm, strings.Join(SMModes, ", "))
	}

	ti.types = splitList(opts.Types)
	if len(ti.types) == 0 {
		ti.types = []string{DefaultType}
		ti.typesSet = false
	}
	ti.testList = splitList(opts.TestList)

	ti.params, err = ParseModuleParams(ti.rawParams, len(ti.hosts))
	if err != nil {
		return nil, err
	}

	switch {
	case opts.NP < 0:
		return nil, breverrors.NewConfigError("np must not be negative")
	case opts.NP == 0:
		ti.np = len(ti.hosts)
	default:
		ti.np = opts.NP
	}

	ti.key, err = LoadKey(deps.Fs, deps.Cwd, opts.SimicsKey)
	if err != nil {
		return nil, err
	}
	return ti, nil
}

func (ti *TestInfo) parsePaths(opts Options, deps Deps) error {
	hfiSrc := opts.HfiSrc
	if hfiSrc == "" && deps.GitRoot != nil {
		// no enclosing repository just leaves it unset
		if root, err := deps.GitRoot(deps.Cwd); err == nil {
			hfiSrc = root
		}
	}
	if hfiSrc != "" {
		p, err := checkDir(deps.Fs, deps.Cwd, "hfisrc", hfiSrc)
		if err != nil {
			return err
		}
		ti.hfiSrc = p
	}

	var err error
	if ti.linuxSrc, err = checkExists(deps.Fs, deps.Cwd, "linuxsrc", opts.LinuxSrc); err != nil {
		return err
	}
	if ti.kbuildDir, err = checkExists(deps.Fs, deps.Cwd, "kbuild", opts.Kbuild); err != nil {
		return err
	}
	if ti.psmLib, err = checkLib(deps.Fs, deps.Cwd, "psm lib", opts.PsmLib); err != nil {
		return err
	}
	if ti.diagLib, err = checkLib(deps.Fs, deps.Cwd, "diag lib", opts.DiagLib); err != nil {
		return err
	}
	if ti.perfDir, err = checkExists(deps.Fs, deps.Cwd, "perfdir", opts.PerfDir); err != nil {
		return err
	}

	// lives on the test hosts, so there is nothing to check here
	ti.testPktDir = absPath(deps.Cwd, lo.Ternary(opts.TestPktDir == "", DefaultTestPktDir, opts.TestPktDir))
	ti.perfPath = lo.Ternary(opts.PerfPath == "", DefaultPerfPath, opts.PerfPath)
	return nil
}

func buildHosts(names []string, simulated bool, forceRoot bool) ([]host.Host, error) {
	hosts := make([]host.Host, 0, len(names))
	for _, name := range names {
		h := host.Host{
			Name:      name,
			DNSName:   name,
			Port:      22,
			Options:   host.DefaultOptions(),
			ForceRoot: forceRoot,
		}
		if simulated {
			port, ok := simulatedHosts[name]
			switch {
			case ok:
				h.DNSName = "localhost"
				h.Port = port
				h.IdentityFile = host.KeyFilePlaceholder
			case name == "localhost":
			default:
				return nil, breverrors.NewConfigError("simulated environment accepts only %s and localhost, got %s",
					strings.Join(lo.Keys(simulatedHosts), ","), name)
			}
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func isSimulatedHost(name string) bool {
	_, ok := simulatedHosts[name]
	return ok
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

func absPath(cwd string, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}

func checkExists(fs afero.Fs, cwd string, what string, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	p = absPath(cwd, p)
	exists, err := afero.Exists(fs, p)
	if err != nil {
		return "", breverrors.WrapAndTrace(err)
	}
	if !exists {
		return "", breverrors.NewConfigError("%s is not a valid path [%s]", what, p)
	}
	return p, nil
}

func checkDir(fs afero.Fs, cwd string, what string, p string) (string, error) {
	p, err := checkExists(fs, cwd, what, p)
	if err != nil {
		return "", err
	}
	isDir, err := afero.IsDir(fs, p)
	if err != nil {
		return "", breverrors.WrapAndTrace(err)
	}
	if !isDir {
		return "", breverrors.NewConfigError("%s is not a directory [%s]", what, p)
	}
	return p, nil
}

func checkLib(fs afero.Fs, cwd string, what string, p string) (string, error) {
	if p == "" || p == Sentinel {
		return Sentinel, nil
	}
	return checkExists(fs, cwd, what, p)
}

// LoadKey resolves --simics-key: PEM text as is, or @path read from fs.
func LoadKey(fs afero.Fs, cwd string, spec string) ([]byte, error) {
	if spec == "" {
		return nil, nil
	}
	if !strings.HasPrefix(spec, "@") {
		return []byte(spec), nil
	}
	p := absPath(cwd, strings.TrimPrefix(spec, "@"))
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, breverrors.NewConfigError("cannot read simulator key %s: %v", p, err)
	}
	return data, nil
}

func (ti *TestInfo) Hosts() []host.Host {
	return append([]host.Host(nil), ti.hosts...)
}

func (ti *TestInfo) HostCount() int {
	return len(ti.hosts)
}

func (ti *TestInfo) Host(i int) host.Host {
	return ti.hosts[i]
}

func (ti *TestInfo) HostName(i int) string {
	return ti.hosts[i].Name
}

// HostNames is the first n logical host names, or all of them when n is
// out of range.
func (ti *TestInfo) HostNames(n int) []string {
	if n <= 0 || n > len(ti.hosts) {
		n = len(ti.hosts)
	}
	return lo.Map(ti.hosts[:n], func(h host.Host, _ int) string { return h.Name })
}

func (ti *TestInfo) Simulated() bool { return ti.simulated }
func (ti *TestInfo) ForceRoot() bool { return ti.forceRoot }
func (ti *TestInfo) MPIVerbs() bool { return ti.mpiVerbs }
func (ti *TestInfo) ListOnly() bool { return ti.listOnly }
func (ti *TestInfo) HfiSrc() string { return ti.hfiSrc }
func (ti *TestInfo) LinuxSrc() string { return ti.linuxSrc }
func (ti *TestInfo) KbuildDir() string { return ti.kbuildDir }
func (ti *TestInfo) PsmLib() string { return ti.psmLib }
func (ti *TestInfo) PsmOpts() string { return ti.psmOpts }
func (ti *TestInfo) DiagLib() string { return ti.diagLib }
func (ti *TestInfo) TestPktDir() string { return ti.testPktDir }
func (ti *TestInfo) SM() string { return ti.sm }
func (ti *TestInfo) BaseDir() string { return ti.baseDir }
func (ti *TestInfo) NP() int { return ti.np }
func (ti *TestInfo) PerfPath() string { return ti.perfPath }
func (ti *TestInfo) PerfDir() string { return ti.perfDir }
func (ti *TestInfo) Device() string { return ti.device }
func (ti *TestInfo) Key() []byte { return ti.key }

// Options is the option surface this TestInfo was parsed from.
func (ti *TestInfo) Options() Options { return ti.opts }

func (ti *TestInfo) TestTypes() []string { return append([]string(nil), ti.types...) }

// TypesExplicit reports whether --type was given rather than defaulted.
func (ti *TestInfo) TypesExplicit() bool { return ti.typesSet }

func (ti *TestInfo) TestList() []string { return append([]string(nil), ti.testList...) }

// ExtraArgs is --args split on commas. Empty input gives no arguments.
func (ti *TestInfo) ExtraArgs() []string {
	if ti.extraArgs == "" {
		return nil
	}
	return strings.Split(ti.extraArgs, ",")
}

// MPIOpts are the mpirun options for the selected transport.
func (ti *TestInfo) MPIOpts() string {
	if ti.mpiVerbs {
		return mpiVerbsOpts
	}
	return mpiPSMOpts
}

// RemotePath maps a local path to where the test hosts see it.
func (ti *TestInfo) RemotePath(p string) string {
	if ti.simulated && p != "" {
		return simulatedMount + p
	}
	return p
}

func (ti *TestInfo) RawModuleParams() string { return ti.rawParams }

// ModuleParams is host i's parameter dictionary in the order given.
func (ti *TestInfo) ModuleParams(i int) *orderedmap.OrderedMap[string, string] {
	return ti.params[i]
}

func (ti *TestInfo) String() string {
	var b strings.Builder
	b.WriteString("\tNodeList:")
	for _, h := range ti.hosts {
		fmt.Fprintf(&b, "\n\t\t%s", h.Label())
	}
	fmt.Fprintf(&b, "\n\tHFI: %s\n\tkbuild: %s\n\tsimulated: %t\n\tmpiverbs: %t", ti.hfiSrc, ti.kbuildDir, ti.simulated, ti.mpiVerbs)
	if ti.qib {
		b.WriteString("\n\tadapter: qib")
	}
	if ti.fpga {
		b.WriteString("\n\tplatform: fpga")
	}
	return b.String()
}
