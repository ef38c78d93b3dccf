package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	statsOut = []string{
		"DcXmitFlits          1234567",
		"DcRcvFlits           1200K",
		"TxFlitVL0            1234000",
	}
	diagsOut = []string{
		"DCC_PRF_PORT_XMIT_DATA_CNT @ 0x1200040  0x0",
		"DCC_PRF_PORT_XMIT_DATA_CNT @ 0x1200040  0x12d687",
		"SendCounterArray64[3] @ 0x0000f0  1234000",
	}
	pmaOut = []string{
		"Port Counters:",
		"    Xmit Data             5 MB (1234567 flits)",
		"    Rcv Data              4 MB (1200000 flits)",
		"VL Number    0",
		"    Xmit Data             4 MB (1234001 flits)",
		"VL Number    15",
		"    Xmit Data             0 MB (77 flits)",
	}
)

func TestStatsCounter(t *testing.T) {
	assert.Equal(t, uint64(1234567), StatsCounter(statsOut, "DcXmitFlits"))
	assert.Equal(t, uint64(1200000), StatsCounter(statsOut, "DcRcvFlits"))
	assert.Equal(t, uint64(0), StatsCounter(statsOut, "TxFlitVL15"))
}

func TestDiagsCounterLastDumpWins(t *testing.T) {
	assert.Equal(t, uint64(0x12d687), DiagsCounter(diagsOut, "DCC_PRF_PORT_XMIT_DATA_CNT"))
	assert.Equal(t, uint64(1234000), DiagsCounter(diagsOut, "SendCounterArray64[3]"))
}

func TestPMACounterSections(t *testing.T) {
	assert.Equal(t, uint64(1234567), PMACounter(pmaOut, "Xmit Data", -1))
	assert.Equal(t, uint64(1234001), PMACounter(pmaOut, "Xmit Data", 0))
	assert.Equal(t, uint64(77), PMACounter(pmaOut, "Xmit Data", 15))
	assert.Equal(t, uint64(0), PMACounter(pmaOut, "Rcv Data", 15))
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name       string
		values     CounterValues
		saturateOK bool
		ok         bool
	}{
		{"exact", CounterValues{Stats: 100, Diags: 100, PMA: 100}, false, true},
		{"within threshold", CounterValues{Stats: 100, Diags: 103, PMA: 101}, false, true},
		{"beyond threshold", CounterValues{Stats: 100, Diags: 150, PMA: 100}, false, false},
		{"under reads count too", CounterValues{Stats: 100, Diags: 50, PMA: 100}, false, false},
		{"zero reading", CounterValues{Stats: 0, Diags: 100, PMA: 100}, false, false},
		{"saturated tolerated", CounterValues{Stats: 100, Diags: saturated, PMA: 100}, true, true},
		{"saturated not tolerated", CounterValues{Stats: 100, Diags: saturated, PMA: 100}, false, false},
		{"saturated pair only", CounterValues{Stats: saturated, Diags: saturated, PMA: saturated - 1}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, _ := Reconcile(tt.values, 5, tt.saturateOK)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDefaultCountersDropVLReceiveInSimulation(t *testing.T) {
	assert.Len(t, DefaultCounters(false), 6)
	assert.Len(t, DefaultCounters(true), 4)
}

func TestReadCounter(t *testing.T) {
	c := DefaultCounters(true)[0]
	got := ReadCounter(c, statsOut, diagsOut, pmaOut)
	assert.Equal(t, CounterValues{Stats: 1234567, Diags: 0x12d687, PMA: 1234567}, got)
}
