// Package host runs shell commands on test machines over ssh.
package host

import (
	"fmt"
	"sort"
)

// KeyFilePlaceholder marks a host whose identity file is materialized from
// configured key material right before each ssh invocation.
const KeyFilePlaceholder = "SIMICS_KEY_FILE"

func DefaultOptions() map[string]string {
	return map[string]string{
		"StrictHostKeyChecking": "no",
		"UserKnownHostsFile":    "/dev/null",
	}
}

// Host is one machine under test. Index 0 of a node list is the primary,
// the server side of two-host tests.
type Host struct {
	Name         string
	DNSName      string
	Port         int
	User         string
	IdentityFile string
	Options      map[string]string
	ForceRoot    bool
}

func (h Host) Label() string {
	if h.DNSName == "" || h.DNSName == h.Name {
		return fmt.Sprintf("%s:%d", h.Name, h.Port)
	}
	return fmt.Sprintf("%s(%s:%d)", h.Name, h.DNSName, h.Port)
}

func (h Host) sortedOptions() []string {
	keys := make([]string, 0, len(h.Options))
	for k := range h.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make([]string, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, fmt.Sprintf("%s=%s", k, h.Options[k]))
	}
	return opts
}
