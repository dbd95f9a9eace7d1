package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newUpdateFromTemplatesCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "update-from-templates",
		Short: "Regenerate merge/override manifests from their templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := release.UpdateFromTemplates(cmd.Context(), osFs(), env)
			if err != nil {
				return err
			}
			for _, path := range written {
				cmd.Println(path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment whose templates to render (required)")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}
