// Package cmdcontext builds the per-process state every verb shares from the
// persistent flag surface: layered config, the validated test configuration
// and the logger.
package cmdcontext

import (
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/brevdev/hfi-regress/pkg/config"
	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

// FlagConfig selects the yaml config file.
const FlagConfig = "config"

// AddFlags registers the shared surface as persistent flags on root.
func AddFlags(root *cobra.Command) {
	root.PersistentFlags().String(FlagConfig, "", "YAML config file (default /etc/hfi-regress/config.yaml or ~/.hfi-regress/config.yaml)")
	testinfo.AddFlags(root.PersistentFlags())
}

type Context struct {
	Options testinfo.Options
	Info    *testinfo.TestInfo
	Log     *testlog.Logger
	Fs      afero.Fs
}

// Close releases the log file, if any.
func (c *Context) Close() error {
	return c.Log.Close()
}

// Load layers flags over HFI_REGRESS_* env over the config file and
// validates the result. Every failure is a ConfigError.
func Load(flags *pflag.FlagSet, deps testinfo.Deps, out io.Writer) (*Context, error) {
	path, _ := flags.GetString(FlagConfig)
	v, err := config.Load(flags, path)
	if err != nil {
		return nil, breverrors.NewConfigError("config: %v", err)
	}
	opts := testinfo.FromViper(v)
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	log, err := testlog.Open(deps.Fs, out, testlog.Options{
		Verbosity: opts.Verbosity,
		Dir:       opts.LogDir,
		Append:    opts.LogAppend,
	})
	if err != nil {
		return nil, breverrors.NewConfigError("log dir %s: %v", opts.LogDir, err)
	}
	ti, err := testinfo.Parse(opts, deps)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	return &Context{Options: opts, Info: ti, Log: log, Fs: deps.Fs}, nil
}
