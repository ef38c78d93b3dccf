// Package list prints the test catalog
package list

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/catalog"
	"github.com/brevdev/hfi-regress/pkg/cmdcontext"
	"github.com/brevdev/hfi-regress/pkg/harness"
	"github.com/brevdev/hfi-regress/pkg/terminal"
	"github.com/brevdev/hfi-regress/pkg/testinfo"
)

func NewCmdList(t *terminal.Terminal, deps testinfo.Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the test catalog",
		Long:  "List the test catalog. With --type or --testlist only the tests a run would pick are shown.",
		Example: `
  hfi-regress list
  hfi-regress list --type quick
  hfi-regress list --catalog ./extra-tests.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx, err := cmdcontext.Load(cmd.Flags(), deps, t.Err())
			if err != nil {
				return err
			}
			defer cctx.Close() //nolint:errcheck // log file
			c, err := catalog.Load(cctx.Fs, cctx.Options.Catalog)
			if err != nil {
				return err
			}
			Print(t, c, cctx.Info)
			return nil
		},
	}
	return cmd
}

// Print renders the entries a run with ti would consider. Without a type or
// test list every entry is shown.
func Print(t *terminal.Terminal, c *catalog.Catalog, ti *testinfo.TestInfo) {
	sel := harness.SelectionFrom(ti)
	var selected []harness.Selected
	if sel.TypesExplicit || len(sel.TestList) > 0 {
		selected = harness.Select(c, sel, t.Warn)
	} else {
		for _, e := range c.Entries() {
			selected = append(selected, harness.Selected{Entry: e})
		}
	}

	rows := make([]table.Row, 0, len(selected))
	for _, s := range selected {
		e := s.Entry
		name := e.Name
		if s.Skipped {
			name = t.Yellow(e.Name + " (skipped)")
		}
		rows = append(rows, table.Row{name, e.Exe, e.Types.String(), e.ExpectExit, e.Desc})
	}
	t.Table(table.Row{"Name", "Exe", "Types", "Expect", "Description"}, rows)
	t.Vprintf("Types: %s\n", strings.Join(c.Types(), ", "))
}
