package harness

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testlog"
)

func newTestRunContext() (*RunContext, *bytes.Buffer) {
	var out bytes.Buffer
	return NewRunContext(testlog.New(io.Discard, testlog.DefaultVerbosity), terminal.NewWithWriters(&out, &out)), &out
}

func mustCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(entries)
	require.NoError(t, err)
	return c
}

func tagged(name string, tags string) catalog.Entry {
	return catalog.Entry{Name: name, Exe: name + ".py", Args: "--nodelist %HOST[2]%", Types: catalog.ParseTags(tags)}
}

func names(selected []Selected) []string {
	out := []string{}
	for _, s := range selected {
		out = append(out, s.Entry.Name)
	}
	return out
}

// fakeLauncher returns statuses by exe path and records every argv.
type fakeLauncher struct {
	status map[string]int
	err    map[string]error
	argv   [][]string
}

func (f *fakeLauncher) Launch(_ context.Context, argv []string) (int, error) {
	f.argv = append(f.argv, argv)
	key := argv[0]
	if len(argv) > 2 && argv[1] == "test" {
		key = argv[2]
	}
	if err := f.err[key]; err != nil {
		return -1, err
	}
	return f.status[key], nil
}
