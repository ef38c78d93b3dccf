package adapters

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Counter names one hardware counter as three different tools report it.
type Counter struct {
	Name     string
	StatsTag string
	DiagsTag string
	PMATag   string
	// VL is the virtual lane section of the PMA dump, -1 for port totals.
	VL int
}

type CounterValues struct {
	Stats uint64
	Diags uint64
	PMA   uint64
}

const saturated = math.MaxUint64

func DefaultCounters(simulated bool) []Counter {
	counters := []Counter{
		{Name: "DcTxFlits", StatsTag: "DcXmitFlits", DiagsTag: "DCC_PRF_PORT_XMIT_DATA_CNT", PMATag: "Xmit Data", VL: -1},
		{Name: "DcRcvFlits", StatsTag: "DcRcvFlits", DiagsTag: "DCC_PRF_PORT_RCV_DATA_CNT", PMATag: "Rcv Data", VL: -1},
		{Name: "TxFlitVL0", StatsTag: "TxFlitVL0", DiagsTag: "SendCounterArray64[3]", PMATag: "Xmit Data", VL: 0},
		{Name: "TxFlitVL15", StatsTag: "TxFlitVL15", DiagsTag: "SendCounterArray64[11]", PMATag: "Xmit Data", VL: 15},
	}
	if !simulated {
		counters = append(counters,
			Counter{Name: "DcRxFlitVl0", StatsTag: "DcRxFlitVl0", DiagsTag: "DCC_PRF_PORT_VL_RCV_DATA_CNT[0]", PMATag: "Rcv Data", VL: 0},
			Counter{Name: "DcRxFlitVl15", StatsTag: "DcRxFlitVl15", DiagsTag: "DCC_PRF_PORT_VL_RCV_DATA_CNT[8]", PMATag: "Rcv Data", VL: 15},
		)
	}
	return counters
}

// StatsCounter reads `hfistats` output, where a K suffix means thousands.
func StatsCounter(lines []string, tag string) uint64 {
	re := regexp.MustCompile(regexp.QuoteMeta(tag) + `\s+(\d+)(K?)`)
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return 0
		}
		if m[2] == "K" {
			v *= 1000
		}
		return v
	}
	return 0
}

// DiagsCounter reads `hfidiags` register dumps ("TAG @ 0xaddr   0x1234").
// The last dump of the register wins.
func DiagsCounter(lines []string, tag string) uint64 {
	re := regexp.MustCompile(regexp.QuoteMeta(tag) + ` @ \S+\s+ (\S+)`)
	var ret uint64
	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 0, 64)
		if err == nil {
			ret = v
		}
	}
	return ret
}

var vlNumber = regexp.MustCompile(`VL Number\s+(\d+)`)

// PMACounter reads `iba_pmaquery` output. For a VL counter the tag is only
// searched after the matching "VL Number" section header.
func PMACounter(lines []string, tag string, vl int) uint64 {
	re := regexp.MustCompile(regexp.QuoteMeta(tag) + `.+\((\d+) flits`)
	inSection := vl == -1
	for _, line := range lines {
		if !inSection {
			m := vlNumber.FindStringSubmatch(line)
			if m != nil {
				n, _ := strconv.Atoi(m[1])
				inSection = n == vl
			}
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 0, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

func ReadCounter(c Counter, stats, diags, pma []string) CounterValues {
	return CounterValues{
		Stats: StatsCounter(stats, c.StatsTag),
		Diags: DiagsCounter(diags, c.DiagsTag),
		PMA:   PMACounter(pma, c.PMATag, c.VL),
	}
}

// Reconcile checks that the three readings agree within threshold percent.
// A zero reading is always bad. With saturateOK a pair where either side is
// pegged at the 64-bit maximum only earns a note.
func Reconcile(v CounterValues, threshold float64, saturateOK bool) (bool, []string) {
	var notes []string
	if v.Stats == 0 || v.Diags == 0 || v.PMA == 0 {
		return false, []string{fmt.Sprintf("zero reading stats=%d diags=%d pma=%d", v.Stats, v.Diags, v.PMA)}
	}
	ok := true
	pairs := []struct {
		name string
		a, b uint64
	}{
		{"diags/pma", v.Diags, v.PMA},
		{"pma/stats", v.PMA, v.Stats},
		{"diags/stats", v.Diags, v.Stats},
	}
	for _, p := range pairs {
		if p.a == p.b {
			continue
		}
		pct := percentDiff(p.a, p.b)
		switch {
		case pct <= threshold:
			notes = append(notes, fmt.Sprintf("%s differ within range [%.2f%%]", p.name, pct))
		case saturateOK && (p.a == saturated || p.b == saturated):
			notes = append(notes, fmt.Sprintf("%s differ but one is saturated", p.name))
		default:
			notes = append(notes, fmt.Sprintf("%s differ beyond range [%.2f%%]", p.name, pct))
			ok = false
		}
	}
	return ok, notes
}

func percentDiff(a, b uint64) float64 {
	diff := float64(a) - float64(b)
	return math.Abs(diff) / float64(b) * 100
}
