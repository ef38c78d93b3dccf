package version

import (
	"strings"
	"testing"
)

func TestBuildVersionString(t *testing.T) {
	Version = ""
	got := BuildVersionString()
	if !strings.Contains(got, "Current version: unknown") {
		t.Errorf(`BuildVersionString() = %q, want it to report "unknown"`, got)
	}

	Version = "v1.4.0"
	defer func() { Version = "" }()
	got = BuildVersionString()
	if !strings.Contains(got, "Current version: v1.4.0") {
		t.Errorf(`BuildVersionString() = %q, want it to report v1.4.0`, got)
	}
}
