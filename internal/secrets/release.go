package secrets

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/process"
)

// ReleaseEnv applies every envs/<env>/secrets/*.yaml (sorted ascending)
// and then deletes every envs/<env>/secrets/obsolete/*.yaml (sorted
// descending), logging each step. dryRun only logs.
func ReleaseEnv(ctx context.Context, runner *process.Runner, fs afero.Fs, env string, dryRun bool) error {
	secretsDir := filepath.Join("envs", env, "secrets")

	applied, err := afero.Glob(fs, filepath.Join(secretsDir, "*.yaml"))
	if err != nil {
		return err
	}
	sort.Strings(applied)

	for _, path := range applied {
		if dryRun {
			log.Infof("[DRY RUN] Applying %s", path)
			continue
		}
		log.Infof("Applying %s", path)
		if _, err := runner.Run(ctx, process.Options{Argv: []string{"kubectl", "apply", "-f", path}, Check: true}); err != nil {
			return fmt.Errorf("applying %s: %w", path, err)
		}
	}

	obsolete, err := afero.Glob(fs, filepath.Join(secretsDir, "obsolete", "*.yaml"))
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(obsolete)))

	for _, path := range obsolete {
		if dryRun {
			log.Infof("[DRY RUN] Deleting %s", path)
			continue
		}
		log.Infof("Deleting %s", path)
		if _, err := runner.Run(ctx, process.Options{Argv: []string{"kubectl", "delete", "-f", path}, Check: true}); err != nil {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
	}

	return nil
}
