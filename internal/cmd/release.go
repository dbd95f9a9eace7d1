package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newReleaseCommand() *cobra.Command {
	var env string
	var components []string
	var images []string
	var tags []string
	var replicas []string
	var build bool
	var dryRun bool
	var keepConfigs bool
	var noRolloutWait bool
	var dockerArgs []string
	var imagePrefix string
	var rolloutTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release one or more components to an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			imageOverrides, err := release.ParseOverrides(images)
			if err != nil {
				return err
			}
			tagOverrides, err := release.ParseOverrides(tags)
			if err != nil {
				return err
			}
			replicaOverrides, err := release.ParseReplicaOverrides(replicas)
			if err != nil {
				return err
			}

			runner := newRunner()
			fs := osFs()

			if build {
				warnIfDockerHostUnset()
				paths := components
				if len(paths) == 0 {
					paths = release.AllComponents
				}
				if err := release.BuildImages(cmd.Context(), runner, fs, paths, imagePrefix, dryRun, dockerArgs); err != nil {
					return err
				}
			}

			relID, err := release.Release(cmd.Context(), runner, fs, release.Options{
				Env:            env,
				Components:     components,
				Images:         imageOverrides,
				Tags:           tagOverrides,
				Replicas:       replicaOverrides,
				ImagePrefix:    imagePrefix,
				DryRun:         dryRun,
				KeepConfigs:    keepConfigs,
				NoRolloutWait:  noRolloutWait,
				RolloutTimeout: rolloutTimeout,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Released %s\n", relID)
			return nil
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "environment to release (required)")
	cmd.Flags().StringArrayVar(&components, "component", nil, "components to release (repeatable); defaults to the environment's configured list")
	cmd.Flags().StringArrayVar(&images, "image", nil, "override a component's image, component=image (repeatable)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "override a component's tag, component=tag (repeatable)")
	cmd.Flags().StringArrayVar(&replicas, "replicas", nil, "override a component's replica count, component=count (repeatable)")
	cmd.Flags().BoolVar(&build, "build", false, "also build the components' images before releasing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate configs and log actions without applying anything")
	cmd.Flags().BoolVar(&keepConfigs, "keep-configs", false, "do not delete the release's generated configs afterward")
	cmd.Flags().BoolVar(&noRolloutWait, "no-rollout-wait", false, "do not wait for rollout completion after applying")
	cmd.Flags().StringArrayVar(&dockerArgs, "docker-arg", nil, "docker build --build-arg K=V, only used with --build (repeatable)")
	cmd.Flags().StringVar(&imagePrefix, "image-prefix", "", "prefix prepended to each component's image name")
	cmd.Flags().DurationVar(&rolloutTimeout, "rollout-timeout", 0, "override the environment's configured rollout wait timeout")
	_ = cmd.MarkFlagRequired("env")

	return cmd
}
