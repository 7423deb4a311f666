// Package commands defines the medialens command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medialens/medialens/version"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medialens",
		Short: "Media analysis pipeline",
		Long:  "medialens ingests media uploads, fans analysis work out over queues and aggregates the results.",
	}

	cmd.AddCommand(
		NewAPICommand(),
		NewRouterCommand(),
		newVersionCommand(),
	)

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetVersionInfo().String())
		},
	}
}
