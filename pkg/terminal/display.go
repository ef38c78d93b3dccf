package terminal

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows under header on the terminal's verbose writer.
func (t *Terminal) Table(header table.Row, rows []table.Row) {
	ta := table.NewWriter()
	ta.SetOutputMirror(t.verbose)
	ta.Style().Options = getHarnessTableOptions()
	ta.AppendHeader(header)
	ta.AppendRows(rows)
	ta.Render()
}

func getHarnessTableOptions() table.Options {
	options := table.OptionsDefault
	options.DrawBorder = false
	options.SeparateColumns = false
	options.SeparateRows = false
	options.SeparateHeader = false
	return options
}
