package cmdcontext

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

func parsed(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "hfi-regress"}
	AddFlags(root)
	require.NoError(t, root.ParseFlags(args))
	return root
}

func deps(t *testing.T) testinfo.Deps {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/hfi", 0o755))
	return testinfo.Deps{Fs: fs, Cwd: "/work", Home: "/home/tester"}
}

func TestLoadFlagsOverEnv(t *testing.T) {
	t.Setenv("HFI_REGRESS_NODELIST", "envhost1,envhost2")
	t.Setenv("HFI_REGRESS_DEVICE", "hfi1_1")
	root := parsed(t, "--nodelist", "node1,node2", "--hfisrc", "/src/hfi")

	ctx, err := Load(root.PersistentFlags(), deps(t), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"node1", "node2"}, ctx.Info.HostNames(2))
	assert.Equal(t, "hfi1_1", ctx.Info.Device())
	assert.NoError(t, ctx.Close())
}

func TestLoadConfigFile(t *testing.T) {
	d := deps(t)
	root := parsed(t, "--hfisrc", "/src/hfi", "--config", "/nonexistent/config.yaml")

	_, err := Load(root.PersistentFlags(), d, &bytes.Buffer{})
	var cerr breverrors.ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadRejectsBadSM(t *testing.T) {
	root := parsed(t, "--nodelist", "node1,node2", "--hfisrc", "/src/hfi", "--sm", "bogus")

	_, err := Load(root.PersistentFlags(), deps(t), &bytes.Buffer{})
	var cerr breverrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "unknown sm")
}

func TestLoadLogDir(t *testing.T) {
	d := deps(t)
	root := parsed(t, "--nodelist", "node1,node2", "--hfisrc", "/src/hfi", "--log-dir", "/var/log/hfi")

	ctx, err := Load(root.PersistentFlags(), d, &bytes.Buffer{})
	require.NoError(t, err)
	ctx.Log.Log(0, "hello")
	require.NoError(t, ctx.Close())

	files, err := afero.ReadDir(d.Fs, "/var/log/hfi")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
