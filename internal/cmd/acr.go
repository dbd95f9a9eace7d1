package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newCleanupACRRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup-acr-registry <registry>",
		Short: "Delete all but the most recent tags from every repository in an ACR registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return release.CleanupACRRegistry(cmd.Context(), newRunner(), args[0])
		},
	}
	return cmd
}
