// Package cmd wires the shipctl cobra command tree: one subcommand per
// release-lifecycle operation, each a thin adapter from flags/env vars
// onto internal/release, internal/secrets, internal/component and
// internal/config. Flag names are preserved verbatim from the source
// tool's invoke tasks since CI scripts already depend on them.
package cmd

import (
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
)

const envPrefix = "SHIPCTL"

// NewRootCommand builds the top-level shipctl command with every
// subcommand attached.
func NewRootCommand() *cobra.Command {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	root := &cobra.Command{
		Use:           "shipctl",
		Short:         "Build, release and manage Kubernetes-deployed components",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init()
		},
	}

	root.AddCommand(
		newBuildImagesCommand(),
		newReleaseCommand(),
		newValidateReleaseConfigsCommand(),
		newInitKubernetesCommand(),
		newInitCommand(),
		newKubevalCommand(),
		newUpdateFromTemplatesCommand(),
		newGetMasterKeyCommand(),
		newSealSecretsCommand(),
		newUnsealSecretsCommand(),
		newCleanupACRRegistryCommand(),
	)

	return root
}

// Execute runs the root command against the real filesystem and OS args.
func Execute() error {
	return NewRootCommand().Execute()
}

// osFs and newRunner are shared by every subcommand; they're the one
// place a live filesystem/process runner gets constructed so command
// bodies stay testable against internal/release and friends, which all
// take an afero.Fs and *process.Runner as parameters rather than
// reaching for globals.
func osFs() afero.Fs {
	return afero.NewOsFs()
}

func newRunner() *process.Runner {
	return process.NewRunner()
}
