package release

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/config"
	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
)

// LocalEnv is the environment name that gets the extra local-development
// bootstrap steps (persisting the Sealed Secrets master key so it
// survives a minikube restart).
const LocalEnv = "minikube"

const sealedSecretsRolloutAttempts = 5
const sealedSecretsRolloutRetryDelay = 2 * time.Second

// InitKubernetes bootstraps a freshly created cluster for env: applies
// the cluster-wide manifests under kube/, waits for the Sealed Secrets
// controller to come up, and fetches its signing certificate to
// envs/<env>/secrets.pem. For LocalEnv it also persists a local master
// key to envs/<env>/secrets.key if one isn't already cached, so a
// minikube rebuild can recover previously sealed secrets.
func InitKubernetes(ctx context.Context, runner *process.Runner, fs afero.Fs, env string) error {
	logging.Label(fmt.Sprintf("Initializing Kubernetes for %s", env))

	settings, err := config.Load(fs, env)
	if err != nil {
		return err
	}
	if _, err := runner.Run(ctx, process.Options{
		Argv:  []string{"kubectl", "config", "use-context", settings.KubeContext},
		Check: true,
	}); err != nil {
		return fmt.Errorf("setting kube context: %w", err)
	}

	envDir := filepath.Join("envs", env)
	masterKeyPath := filepath.Join(envDir, "secrets.key")
	certPath := filepath.Join(envDir, "secrets.pem")

	if env == LocalEnv {
		if exists, _ := afero.Exists(fs, masterKeyPath); exists {
			log.Infof("Applying Sealed Secrets master key from %s", masterKeyPath)
			if _, err := runner.Run(ctx, process.Options{
				Argv:  []string{"kubectl", "apply", "-f", masterKeyPath},
				Check: false,
			}); err != nil {
				return fmt.Errorf("applying master key: %w", err)
			}
		}
	}

	clusterConfigs, err := afero.Glob(fs, filepath.Join("kube", "*.yaml"))
	if err != nil {
		return err
	}
	sort.Strings(clusterConfigs)
	for _, path := range clusterConfigs {
		if _, err := runner.Run(ctx, process.Options{
			Argv:  []string{"kubectl", "apply", "-f", path},
			Check: true,
		}); err != nil {
			return fmt.Errorf("applying %s: %w", path, err)
		}
	}

	if _, err := runner.Run(ctx, process.Options{
		Argv: []string{
			"kubectl", "rollout", "status",
			"--namespace", "kube-system",
			"deploy/sealed-secrets-controller",
		},
		Check: true,
	}); err != nil {
		return fmt.Errorf("waiting for sealed-secrets-controller: %w", err)
	}

	log.Info("Trying to fetch Sealed Secrets signing cert")
	cert, err := fetchSealedSecretsCert(ctx, runner)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, certPath, cert, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", certPath, err)
	}

	if env == LocalEnv {
		if exists, _ := afero.Exists(fs, masterKeyPath); !exists {
			log.Info("Trying to store Sealed Secrets master key")
			if err := storeMasterKey(ctx, runner, fs, masterKeyPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func fetchSealedSecretsCert(ctx context.Context, runner *process.Runner) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < sealedSecretsRolloutAttempts; attempt++ {
		res, err := runner.Run(ctx, process.Options{Argv: []string{"kubeseal", "--fetch-cert"}, Check: true})
		if err == nil {
			return res.Stdout, nil
		}
		lastErr = err
		time.Sleep(sealedSecretsRolloutRetryDelay)
	}
	return nil, fmt.Errorf("failed to fetch Sealed Secrets cert: %w", lastErr)
}

func storeMasterKey(ctx context.Context, runner *process.Runner, fs afero.Fs, masterKeyPath string) error {
	res, err := runner.Run(ctx, process.Options{
		Argv: []string{
			"kubectl", "get", "secret",
			"--namespace", "kube-system",
			"-o", "custom-columns=name:metadata.name",
		},
		Check: true,
	})
	if err != nil {
		return fmt.Errorf("listing kube-system secrets: %w", err)
	}

	names := keyNamesWithPrefix(res.Stdout, "sealed-secrets-key")

	var combined []byte
	for i, name := range names {
		if i > 0 {
			combined = append(combined, []byte("---\n")...)
		}
		secretRes, err := runner.Run(ctx, process.Options{
			Argv:  []string{"kubectl", "get", "secret", "--namespace", "kube-system", name, "-o", "yaml"},
			Check: true,
		})
		if err != nil {
			return fmt.Errorf("fetching secret %s: %w", name, err)
		}
		combined = append(combined, secretRes.Stdout...)
		combined = append(combined, '\n')
	}

	return afero.WriteFile(fs, masterKeyPath, combined, 0o600)
}

func keyNamesWithPrefix(output []byte, prefix string) []string {
	var names []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			names = append(names, line)
		}
	}
	return names
}
