package cmd

import (
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// TODO: write the review document to the review branch once merge/abandon transitions exist.
		ui.Info("Creating new review")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
