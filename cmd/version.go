package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd prints the version injected through SetVersion.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cloudphone",
		Long:  `All software has versions. This is cloudphone's.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cloudphone version %s\n", rootCmd.Version)
		},
	}
}
