package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/version"
)

func initVersion(root *cobra.Command) {
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print the polystore version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Version: "+version.Version)
		},
	}
	root.AddCommand(versionCommand)
}
