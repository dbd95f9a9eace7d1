package secrets

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/process"
)

// GetMasterKey returns a filesystem path to the Sealed Secrets master
// key for env, fetching it from the cluster if not already cached at
// envs/<env>/master.key. useExisting skips the cluster fetch and fails
// if no cached key is present.
func GetMasterKey(ctx context.Context, runner *process.Runner, fs afero.Fs, env string, useExisting bool) (string, error) {
	path := filepath.Join("envs", env, "master.key")

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return "", err
	}

	if exists {
		log.Infof("Using cached master key at %s", path)
		return path, nil
	}

	if useExisting {
		return "", fmt.Errorf("no cached master key at %s", path)
	}

	log.Info("Fetching master key from cluster")
	res, err := runner.Run(ctx, process.Options{
		Argv: []string{
			"kubectl", "get", "secret",
			"-l", "sealedsecrets.bitnami.com/sealed-secrets-key",
			"-n", "kube-system",
			"-o", "yaml",
		},
		Check: true,
	})
	if err != nil {
		return "", fmt.Errorf("fetching master key: %w", err)
	}

	if err := afero.WriteFile(fs, path, res.Stdout, 0o600); err != nil {
		return "", fmt.Errorf("caching master key: %w", err)
	}
	return path, nil
}
