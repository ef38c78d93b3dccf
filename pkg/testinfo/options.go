package testinfo

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names of the option surface shared by the harness and every leaf
// test.
const (
	FlagNodeList   = "nodelist"
	FlagHfiSrc     = "hfisrc"
	FlagLinuxSrc   = "linuxsrc"
	FlagKbuild     = "kbuild"
	FlagSimics     = "simics"
	FlagQib        = "qib"
	FlagFPGA       = "fpga"
	FlagType       = "type"
	FlagList       = "list"
	FlagPsm        = "psm"
	FlagPsmOpts    = "psmopts"
	FlagDiags      = "sw-diags"
	FlagMPIVerbs   = "mpiverbs"
	FlagTestPktDir = "test-pkt-dir"
	FlagModParm    = "modparm"
	FlagArgs       = "args"
	FlagSM         = "sm"
	FlagBaseDir    = "basedir"
	FlagTestList   = "testlist"
	FlagNP         = "np"
	FlagForceRoot  = "forceroot"
	FlagPerfPath   = "perfpath"
	FlagPerfDir    = "perfdir"

	FlagVerbosity          = "verbosity"
	FlagLogDir             = "log-dir"
	FlagLogAppend          = "log-append"
	FlagTestsDir           = "tests-dir"
	FlagCatalog            = "catalog"
	FlagJUnit              = "junit"
	FlagStrictPlaceholders = "strict-placeholders"
	FlagSimicsKey          = "simics-key"
	FlagSSHConfig          = "ssh-config"
	FlagDevice             = "device"
	FlagDryRun             = "dry-run"
)

// Options is the raw option surface before validation.
type Options struct {
	NodeList   string
	HfiSrc     string
	LinuxSrc   string
	Kbuild     string
	Simics     bool
	Qib        bool
	FPGA       bool
	Types      string
	List       bool
	PsmLib     string
	PsmOpts    string
	DiagLib    string
	MPIVerbs   bool
	TestPktDir string
	ModParams  string
	Args       string
	SM         string
	BaseDir    string
	TestList   string
	NP         int
	ForceRoot  bool
	PerfPath   string
	PerfDir    string

	// TypesExplicit is true when --type came from the user rather than the
	// default.
	TypesExplicit bool

	Verbosity          int
	LogDir             string
	LogAppend          bool
	TestsDir           string
	Catalog            string
	JUnit              string
	StrictPlaceholders bool
	SimicsKey          string
	SSHConfig          string
	Device             string
	DryRun             bool
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(FlagNodeList, DefaultNodeList, "Nodes to run on")
	flags.String(FlagHfiSrc, "", "Path to hfi driver source (default: enclosing git worktree)")
	flags.String(FlagLinuxSrc, "", "Path to linux kernel source")
	flags.String(FlagKbuild, "", "Path to kbuild dir")
	flags.Bool(FlagSimics, false, "Run on the simulated environment. Implied by viper0,viper1")
	flags.Bool(FlagQib, false, "Target a qib adapter")
	flags.Bool(FlagFPGA, false, "Target an FPGA emulation platform")
	flags.String(FlagType, "", "Test type(s) to run, comma separated. Use 'all' for everything (default \"default\")")
	flags.Bool(FlagList, false, "List available tests")
	flags.String(FlagPsm, Sentinel, "PSM location. DEFAULT uses the remote $PATH")
	flags.String(FlagPsmOpts, "", "Extra PSM options")
	flags.String(FlagDiags, Sentinel, "Diag libs location. DEFAULT uses the remote $PATH")
	flags.Bool(FlagMPIVerbs, false, "Run MPI over verbs instead of PSM")
	flags.String(FlagTestPktDir, DefaultTestPktDir, "Location of test packets on the test hosts")
	flags.String(FlagModParm, "", "Module parameters like 'p1=X p2=Y', or colon separated per host")
	flags.String(FlagArgs, "", "Extra params to pass to tests as a comma separated list")
	flags.String(FlagSM, DefaultSM, "Which SM to use: opensm, ifs_fm, detect, none or remote")
	flags.String(FlagBaseDir, "", "Base directory tests source executables from")
	flags.String(FlagTestList, "", "Comma separated tests to run. --type further filters the list")
	flags.Int(FlagNP, 0, "MPI process count (default: number of hosts)")
	flags.Bool(FlagForceRoot, false, "Run every remote command as root")
	flags.String(FlagPerfPath, DefaultPerfPath, "Directory of the perf check tools on the test hosts")
	flags.String(FlagPerfDir, "", "Directory for perf regression output (default /tmp)")

	flags.Int(FlagVerbosity, DefaultVerbosity, "Log verbosity, higher is chattier")
	flags.String(FlagLogDir, "", "Also write the log to a dated file in this directory")
	flags.Bool(FlagLogAppend, false, "Append to the log file instead of truncating it")
	flags.String(FlagTestsDir, "", "Directory holding external test scripts (default: <hfisrc>/test/tests)")
	flags.String(FlagCatalog, "", "YAML file overlaying catalog entries")
	flags.String(FlagJUnit, "", "Write a JUnit XML report to this path")
	flags.Bool(FlagStrictPlaceholders, false, "Fail before running when a catalog entry has an unknown placeholder")
	flags.String(FlagSimicsKey, "", "Simulator ssh private key, PEM text or @path")
	flags.String(FlagSSHConfig, "", "ssh_config file overriding host name, port, user and identity")
	flags.String(FlagDevice, DefaultDevice, "IB device under test")
	flags.Bool(FlagDryRun, false, "Print test command lines without running them")
}

// FromViper reads the option surface from a viper instance whose flags were
// registered with AddFlags.
func FromViper(v *viper.Viper) Options {
	return Options{
		NodeList:   v.GetString(FlagNodeList),
		HfiSrc:     v.GetString(FlagHfiSrc),
		LinuxSrc:   v.GetString(FlagLinuxSrc),
		Kbuild:     v.GetString(FlagKbuild),
		Simics:     v.GetBool(FlagSimics),
		Qib:        v.GetBool(FlagQib),
		FPGA:       v.GetBool(FlagFPGA),
		Types:      v.GetString(FlagType),
		List:       v.GetBool(FlagList),
		PsmLib:     v.GetString(FlagPsm),
		PsmOpts:    v.GetString(FlagPsmOpts),
		DiagLib:    v.GetString(FlagDiags),
		MPIVerbs:   v.GetBool(FlagMPIVerbs),
		TestPktDir: v.GetString(FlagTestPktDir),
		ModParams:  v.GetString(FlagModParm),
		Args:       v.GetString(FlagArgs),
		SM:         v.GetString(FlagSM),
		BaseDir:    v.GetString(FlagBaseDir),
		TestList:   v.GetString(FlagTestList),
		NP:         v.GetInt(FlagNP),
		ForceRoot:  v.GetBool(FlagForceRoot),
		PerfPath:   v.GetString(FlagPerfPath),
		PerfDir:    v.GetString(FlagPerfDir),

		TypesExplicit: v.IsSet(FlagType) && v.GetString(FlagType) != "",

		Verbosity:          v.GetInt(FlagVerbosity),
		LogDir:             v.GetString(FlagLogDir),
		LogAppend:          v.GetBool(FlagLogAppend),
		TestsDir:           v.GetString(FlagTestsDir),
		Catalog:            v.GetString(FlagCatalog),
		JUnit:              v.GetString(FlagJUnit),
		StrictPlaceholders: v.GetBool(FlagStrictPlaceholders),
		SimicsKey:          v.GetString(FlagSimicsKey),
		SSHConfig:          v.GetString(FlagSSHConfig),
		Device:             v.GetString(FlagDevice),
		DryRun:             v.GetBool(FlagDryRun),
	}
}

// DefaultOptions is the option surface with every flag at its default.
func DefaultOptions() Options {
	return Options{
		NodeList:   DefaultNodeList,
		PsmLib:     Sentinel,
		DiagLib:    Sentinel,
		TestPktDir: DefaultTestPktDir,
		SM:         DefaultSM,
		PerfPath:   DefaultPerfPath,
		Verbosity:  DefaultVerbosity,
		Device:     DefaultDevice,
	}
}
