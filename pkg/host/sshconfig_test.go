package host

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestApplySSHConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	config := `
Host node1
  HostName node1.fabric.lab
  User tester
  Port 2222
  IdentityFile ~/.ssh/lab_key

Host node2
  IdentityFile /keys/node2.pem
`
	require.NoError(t, afero.WriteFile(fs, "/etc/ssh_config", []byte(config), 0o600))

	hosts := []Host{
		{Name: "node1", DNSName: "node1", Port: 22},
		{Name: "node2", DNSName: "node2", Port: 22},
		{Name: "node3", DNSName: "node3", Port: 22},
	}
	got, err := ApplySSHConfig(fs, "/etc/ssh_config", "/home/tester", hosts)
	require.NoError(t, err)

	require.Equal(t, Host{Name: "node1", DNSName: "node1.fabric.lab", Port: 2222, User: "tester", IdentityFile: "/home/tester/.ssh/lab_key"}, got[0])
	require.Equal(t, Host{Name: "node2", DNSName: "node2", Port: 22, IdentityFile: "/keys/node2.pem"}, got[1])
	require.Equal(t, hosts[2], got[2])
}

func TestApplySSHConfigMissingFile(t *testing.T) {
	_, err := ApplySSHConfig(afero.NewMemMapFs(), "/nope", "/home/tester", nil)
	require.Error(t, err)
}
