package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and available storage drivers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("origindb %s\n", rootCmd.Version)
		fmt.Printf("storage drivers: %v\n", backingstore.Available())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
