package adapters

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestModuleLoaded(t *testing.T) {
	lsmod := []string{
		"Module                  Size  Used by",
		"hfi1                  655360  0",
		"ib_core               311296  1 hfi1",
	}
	assert.True(t, ModuleLoaded(lsmod, "hfi1"))
	assert.False(t, ModuleLoaded(lsmod, "hfi"))
	assert.False(t, ModuleLoaded(nil, "hfi1"))
}

func TestOpenSMRunning(t *testing.T) {
	assert.True(t, OpenSMRunning([]string{"opensm (pid  4242) is running..."}))
	assert.True(t, OpenSMRunning([]string{"   Active: active (running) since Tue"}))
	assert.False(t, OpenSMRunning([]string{"opensm is stopped"}))
}

func TestLinkStateActive(t *testing.T) {
	active := []string{
		"CA PortInfo:",
		"LinkState:.......................Active",
		"PhysLinkState:...................LinkUp",
	}
	assert.True(t, LinkStateActive(active))
	assert.False(t, LinkStateActive([]string{"LinkState:.......................Init"}))
}

func TestParseLID(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  uint32
		ok    bool
	}{
		{"decimal digits", []string{"0x1"}, 1, true},
		{"hex letters", []string{"0x1f\n"}, 31, true},
		{"padded", []string{"  0x0002  "}, 2, true},
		{"no such file", []string{"cat: /sys/class/infiniband/hfi1_0/ports/1/lid: No such file or directory"}, 0, false},
		{"empty", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLID(tt.lines)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamEnabled(t *testing.T) {
	lines := []string{"snoop_enable = 1", "snoop_drop_send = 0"}
	assert.True(t, ParamEnabled(lines, "snoop_enable"))
	assert.False(t, ParamEnabled(lines, "snoop_drop_send"))
	assert.False(t, ParamEnabled(lines, "loopback"))
}

func TestSummaryFailures(t *testing.T) {
	lines := []string{
		"osu_bw 4096 ... ok",
		"osu_latency 8 ... fail",
		"ib_write_bw: Test_Failed",
		"Failures: 0",
	}
	want := []string{"osu_latency 8 ... fail", "ib_write_bw: Test_Failed"}
	if diff := cmp.Diff(want, SummaryFailures(lines)); diff != "" {
		t.Errorf("SummaryFailures mismatch (-want +got):\n%s", diff)
	}
}

func TestPortsInState(t *testing.T) {
	ss := []string{
		"State      Recv-Q Send-Q Local Address:Port   Peer Address:Port",
		"LISTEN     0      128    *:18515              *:*",
		"LISTEN     0      128    *:18516              *:*",
		"ESTAB      0      0      10.0.0.1:22          10.0.0.9:51234",
	}
	assert.True(t, PortsInState(ss, "LISTEN", 18515, 1))
	assert.True(t, PortsInState(ss, "listen", 18515, 2))
	assert.False(t, PortsInState(ss, "LISTEN", 18515, 3))
	assert.False(t, PortsInState(ss, "LISTEN", 22, 1))
	assert.True(t, PortsInState(ss, "ESTAB", 22, 1))

	netstat := []string{
		"Proto Recv-Q Send-Q Local Address           Foreign Address         State",
		"tcp        0      0 0.0.0.0:18515           0.0.0.0:*               LISTEN",
	}
	assert.True(t, PortsInState(netstat, "LISTEN", 18515, 1))
}
