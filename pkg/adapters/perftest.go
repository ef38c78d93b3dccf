package adapters

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// PerftestRow is one result line of an ib_*_bw or ib_*_lat run, keyed by
// the column headers the tool printed.
type PerftestRow struct {
	Bytes      int
	Iterations int
	Values     map[string]float64
}

var headerSplit = regexp.MustCompile(`\s{2,}|\t+`)

// ParsePerftest reads the result table that follows the "#bytes" header.
func ParsePerftest(lines []string) ([]PerftestRow, error) {
	var columns []string
	var rows []PerftestRow
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#bytes") {
			columns = headerSplit.Split(trimmed, -1)
			// latency tools print "#bytes #iterations" with a single space
			if first := strings.Fields(columns[0]); len(first) == 2 {
				columns = append([]string{first[0], first[1]}, columns[1:]...)
			}
			continue
		}
		if columns == nil || trimmed == "" || strings.HasPrefix(trimmed, "-") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		size, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		iters, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad iteration count %q in %q", fields[1], trimmed)
		}
		row := PerftestRow{Bytes: size, Iterations: iters, Values: map[string]float64{}}
		for i := 2; i < len(fields) && i < len(columns); i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("bad value %q for %s", fields[i], columns[i])
			}
			row.Values[columns[i]] = v
		}
		rows = append(rows, row)
	}
	if columns == nil {
		return nil, fmt.Errorf("no perftest result header found")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("perftest printed a header but no results")
	}
	return rows, nil
}

// ParsePerftestJSON reads the report written by --out_json. Bandwidth runs
// carry BW_peak/BW_average, latency runs t_avg/t_typical.
func ParsePerftestJSON(data []byte) (PerftestRow, error) {
	if !gjson.ValidBytes(data) {
		return PerftestRow{}, fmt.Errorf("invalid perftest json report")
	}
	results := gjson.GetBytes(data, "results")
	if !results.Exists() {
		return PerftestRow{}, fmt.Errorf("perftest json report has no results")
	}
	row := PerftestRow{
		Bytes:      int(results.Get("MsgSize").Int()),
		Iterations: int(results.Get("n_iterations").Int()),
		Values:     map[string]float64{},
	}
	results.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number && key.String() != "MsgSize" && key.String() != "n_iterations" {
			row.Values[key.String()] = value.Float()
		}
		return true
	})
	return row, nil
}
