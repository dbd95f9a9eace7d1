package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nimbleci/shipctl/internal/secrets"
)

func certPath(env string) string {
	return filepath.Join("envs", env, "secrets.pem")
}

func newGetMasterKeyCommand() *cobra.Command {
	var env string
	var useExisting bool
	cmd := &cobra.Command{
		Use:   "get-master-key",
		Short: "Print the path to an environment's Sealed Secrets master key, fetching it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := secrets.GetMasterKey(cmd.Context(), newRunner(), osFs(), env, useExisting)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment whose master key to fetch (required)")
	cmd.Flags().BoolVar(&useExisting, "use-existing", false, "fail instead of fetching from the cluster if no key is cached")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func newSealSecretsCommand() *cobra.Command {
	var env string
	var onlyChanged bool
	cmd := &cobra.Command{
		Use:   "seal-secrets",
		Short: "Seal every *.unsealed.yaml secret in an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner := newRunner()
			fs := osFs()

			masterKey, err := secrets.GetMasterKey(ctx, runner, fs, env, false)
			if err != nil {
				return err
			}

			written, err := secrets.SealSecrets(ctx, runner, fs, env, certPath(env), masterKey, onlyChanged)
			if err != nil {
				return err
			}
			for _, path := range written {
				cmd.Println(path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment whose secrets to seal (required)")
	cmd.Flags().BoolVar(&onlyChanged, "only-changed", true, "keep prior ciphertext for values that haven't changed, for stable diffs")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}

func newUnsealSecretsCommand() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "unseal-secrets",
		Short: "Unseal every sealed secret in an environment to *.unsealed.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner := newRunner()
			fs := osFs()

			masterKey, err := secrets.GetMasterKey(ctx, runner, fs, env, true)
			if err != nil {
				return err
			}

			written, err := secrets.UnsealSecrets(ctx, runner, fs, env, certPath(env), masterKey)
			if err != nil {
				return err
			}
			for _, path := range written {
				cmd.Println(path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment whose secrets to unseal (required)")
	_ = cmd.MarkFlagRequired("env")
	return cmd
}
