package host

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
	"github.com/spf13/afero"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

// ApplySSHConfig overrides HostName, Port, User and IdentityFile of each
// host from a matching ssh_config block. Hosts without a block are returned
// unchanged.
func ApplySSHConfig(fs afero.Fs, path string, home string, hosts []Host) ([]Host, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, breverrors.WrapAndTrace(err)
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, breverrors.WrapAndTrace(fmt.Errorf("failed to parse ssh_config at %s", path))
	}

	out := make([]Host, len(hosts))
	for i, h := range hosts {
		resolved, err := applyBlock(cfg, h, home)
		if err != nil {
			return nil, breverrors.WrapAndTrace(err)
		}
		out[i] = resolved
	}
	return out, nil
}

func applyBlock(cfg *ssh_config.Config, h Host, home string) (Host, error) {
	get := func(key string) string {
		v, _ := cfg.Get(h.Name, key)
		return strings.TrimSpace(v)
	}
	if hostname := get("HostName"); hostname != "" {
		h.DNSName = hostname
	}
	if user := get("User"); user != "" {
		h.User = user
	}
	if portStr := get("Port"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Host{}, fmt.Errorf("invalid Port for %s: %s", h.Name, portStr)
		}
		h.Port = port
	}
	if identityFile := get("IdentityFile"); identityFile != "" {
		h.IdentityFile = expandPath(identityFile, home)
	}
	return h, nil
}

func expandPath(path string, home string) string {
	if strings.HasPrefix(path, "~") {
		trimmed := strings.TrimPrefix(path, "~")
		return filepath.Join(home, strings.TrimPrefix(trimmed, string(filepath.Separator)))
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(home, path)
}
