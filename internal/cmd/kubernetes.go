package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
	"github.com/nimbleci/shipctl/internal/release"
)

func newInitKubernetesCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "init-kubernetes",
		Short: "Bootstrap a cluster: cluster-wide manifests, Sealed Secrets controller and cert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return release.InitKubernetes(cmd.Context(), newRunner(), osFs(), env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment whose cluster to initialize (required)")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a local development environment end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner := newRunner()
			fs := osFs()

			if err := installVersionControlHooks(ctx, runner); err != nil {
				return err
			}
			if err := release.InitKubernetes(ctx, runner, fs, release.LocalEnv); err != nil {
				return err
			}
			if err := release.BuildImages(ctx, runner, fs, release.AllComponents, "", false, nil); err != nil {
				return err
			}
			_, err := release.Release(ctx, runner, fs, release.Options{Env: release.LocalEnv})
			return err
		},
	}
}

// installVersionControlHooks installs the repo's pre-commit hooks, the
// first step of a from-scratch local environment setup.
func installVersionControlHooks(ctx context.Context, runner *process.Runner) error {
	logging.Label("Installing pre-commit hooks")
	_, err := runner.Run(ctx, process.Options{
		Argv:  []string{"pre-commit", "install"},
		Check: true,
	})
	if err != nil {
		return fmt.Errorf("installing pre-commit hooks: %w", err)
	}
	return nil
}
