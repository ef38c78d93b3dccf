package testlog

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerbosityGate(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, 2)

	l.Log(0, "always")
	l.Log(2, "at limit")
	l.Log(3, "too chatty")

	assert.Contains(t, out.String(), "always")
	assert.Contains(t, out.String(), "at limit")
	assert.NotContains(t, out.String(), "too chatty")
}

func TestLineFormat(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, DefaultVerbosity).WithField("run", "abc")

	l.Logf(0, "Running %s", "hfistats -i 0")
	l.Warnf("odd value %d", 3)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Regexp(t, regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] Running hfistats -i 0 run=abc$`), string(lines[0]))
	assert.Contains(t, string(lines[1]), "WARN: odd value 3")
}

func TestOpenTeesToDatedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	name := "/logs/hfi-regress.20240309.log"
	require.NoError(t, afero.WriteFile(fs, name, []byte("previous run\n"), 0o644))

	var out bytes.Buffer
	l, err := Open(fs, &out, Options{Verbosity: 5, Dir: "/logs", Append: true, Now: now})
	require.NoError(t, err)
	l.Log(0, "continued")
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "previous run")
	assert.Contains(t, string(data), "continued")
	assert.Contains(t, out.String(), "continued")

	l, err = Open(fs, &out, Options{Verbosity: 5, Dir: "/logs", Now: now})
	require.NoError(t, err)
	l.Log(0, "fresh")
	require.NoError(t, l.Close())

	data, err = afero.ReadFile(fs, name)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "previous run")
	assert.Contains(t, string(data), "fresh")
}
