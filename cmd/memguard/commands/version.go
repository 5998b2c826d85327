package commands

import (
	"fmt"

	"memguard/internal/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the memguard version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "memguard %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
