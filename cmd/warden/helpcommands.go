package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/override"
)

var helpCommandsCmd = &cobra.Command{
	Use:   "help-commands",
	Short: "List the slash commands warden understands in issue comments",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(override.HelpText())
	},
}

func init() {
	rootCmd.AddCommand(helpCommandsCmd)
}
