package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  `Display the version, commit hash and build date`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s version %s\n", e.edition.Name, e.build.Version)
			fmt.Fprintf(out, "Commit: %s\n", e.build.Commit)
			fmt.Fprintf(out, "Built: %s\n", e.build.Date)
		},
	}
}
