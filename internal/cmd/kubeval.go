package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newKubevalCommand() *cobra.Command {
	var skipKinds []string
	cmd := &cobra.Command{
		Use:   "kubeval",
		Short: "Check that every Kubernetes manifest in the tree looks valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return release.Kubeval(cmd.Context(), newRunner(), osFs(), skipKinds)
		},
	}
	cmd.Flags().StringArrayVar(&skipKinds, "skip-kinds", nil, "resource kinds to exclude from validation (repeatable)")
	return cmd
}
