package version

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brevdev/hfi-regress/pkg/terminal"
)

// Version is set at build time with -ldflags "-X .../version.Version=v1.2.3".
var Version = ""

var green = color.New(color.FgGreen).SprintfFunc()

var versionString = `
Current version: %s

` + green("hfi-regress HFI driver regression harness")

func BuildVersionString() string {
	v := Version
	if v == "" {
		v = "unknown"
	}
	return fmt.Sprintf(versionString, v)
}

func NewCmdVersion(t *terminal.Terminal) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the harness version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			t.Vprint(BuildVersionString())
		},
	}
	return cmd
}
