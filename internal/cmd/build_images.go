package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/release"
)

func newBuildImagesCommand() *cobra.Command {
	var components []string
	var imagePrefix string
	var dryRun bool
	var dockerArgs []string

	cmd := &cobra.Command{
		Use:   "build-images",
		Short: "Build Docker images for one or more components",
		RunE: func(cmd *cobra.Command, args []string) error {
			warnIfDockerHostUnset()
			paths := components
			if len(paths) == 0 {
				paths = release.AllComponents
			}
			return release.BuildImages(cmd.Context(), newRunner(), osFs(), paths, imagePrefix, dryRun, dockerArgs)
		},
	}

	cmd.Flags().StringArrayVar(&components, "component", nil, "components to build (repeatable); defaults to the tool's known component list")
	cmd.Flags().StringVar(&imagePrefix, "image-prefix", "", "prefix prepended to each component's image name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be built without invoking docker")
	cmd.Flags().StringArrayVar(&dockerArgs, "docker-arg", nil, "docker build --build-arg K=V (repeatable)")

	return cmd
}

// warnIfDockerHostUnset matches the source tool's build_images check: it
// doesn't fail the build, just hints at a likely cause ("minikube start")
// when a later docker invocation errors out.
func warnIfDockerHostUnset() {
	if os.Getenv("DOCKER_HOST") == "" {
		log.Warn(`DOCKER_HOST not set, if you get an error you might be missing something like "minikube start"`)
	}
}
