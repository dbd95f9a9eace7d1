package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newValidateReleaseConfigsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-release-configs",
		Short: "Validate every environment's component manifests, base and patched",
		RunE: func(cmd *cobra.Command, args []string) error {
			return release.ValidateReleaseConfigs(cmd.Context(), newRunner(), osFs())
		},
	}
}
