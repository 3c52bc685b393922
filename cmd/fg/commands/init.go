package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the font store",
	Long:  `Create the font store location if it does not exist yet. Safe to run more than once.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := FG.Store.EnsureReady(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("✅ Font store ready at %s\n", FG.Store.Location())
		fmt.Printf("   %d font(s) in catalog\n", len(FG.Catalog))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
