package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// handleHelpArg prints usage when "help" is passed as a positional argument.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 1 && args[0] == "help" {
		fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
		return true
	}
	return false
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	return fmt.Errorf("required flag %s not set\nTry '%s --help' for more information", flag, cmd.CommandPath())
}
