// Package adapters turns the text output of the external tools the tests
// drive (lsmod, ibportstate, ss, perftest, hfistats, capture listeners) into
// values the tests can judge.
package adapters

import (
	"regexp"
	"strconv"
	"strings"
)

// ModuleLoaded reports whether lsmod output lists the named module.
func ModuleLoaded(lines []string, name string) bool {
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == name {
			return true
		}
	}
	return false
}

// OpenSMRunning matches both the sysv ("opensm (pid 123) is running...")
// and the systemd ("Active: active (running)") status forms.
func OpenSMRunning(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "is running") || strings.Contains(line, "active (running)") {
			return true
		}
	}
	return false
}

var linkStateActive = regexp.MustCompile(`LinkState.+Active`)

// LinkStateActive scans `ibportstate -D 0 query` output.
func LinkStateActive(lines []string) bool {
	for _, line := range lines {
		if linkStateActive.MatchString(line) {
			return true
		}
	}
	return false
}

var lidValue = regexp.MustCompile(`^\s*(0x[0-9a-fA-F]+)\s*$`)

// ParseLID reads the sysfs lid attribute, which the driver prints as hex.
func ParseLID(lines []string) (uint32, bool) {
	for _, line := range lines {
		m := lidValue.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 0, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	return 0, false
}

var paramLine = regexp.MustCompile(`^(\S+) = (\S*)`)

// ParamEnabled checks `echo name = $(cat /sys/module/.../name)` output.
func ParamEnabled(lines []string, name string) bool {
	for _, line := range lines {
		m := paramLine.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil && m[1] == name {
			return m[2] == "1" || m[2] == "Y"
		}
	}
	return false
}

var failMarkers = []string{"fail", "Test_Failed"}

// SummaryFailures returns the lines of a perf check summary that report a
// failed measurement.
func SummaryFailures(lines []string) []string {
	var failed []string
	for _, line := range lines {
		for _, marker := range failMarkers {
			if strings.Contains(line, marker) {
				failed = append(failed, line)
				break
			}
		}
	}
	return failed
}
