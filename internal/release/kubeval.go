package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
)

// sealedSecretsManifestName is skipped because the Sealed Secrets
// controller's own manifest doesn't validate cleanly against upstream
// schemas.
const sealedSecretsManifestName = "01-sealed-secrets-controller.yaml"

// sealedSecretsAPIVersion marks a manifest as a SealedSecret custom
// resource, which kubeval has no schema for.
const sealedSecretsAPIVersion = "apiVersion: bitnami.com/v1alpha1"

// Kubeval runs the external kubeval validator over every kube/*.yaml
// manifest found anywhere in the tree, skipping temp/ release artifacts,
// the Sealed Secrets controller manifest, and any SealedSecret resource.
func Kubeval(ctx context.Context, runner *process.Runner, fs afero.Fs, skipKinds []string) error {
	logging.Label("Checking Kubernetes configs")

	manifests, err := findKubeManifests(fs)
	if err != nil {
		return fmt.Errorf("discovering kube manifests: %w", err)
	}
	if len(manifests) == 0 {
		return nil
	}

	argv := []string{"kubeval"}
	if len(skipKinds) > 0 {
		argv = append(argv, "--skip-kinds", strings.Join(skipKinds, ","))
	}
	argv = append(argv, manifests...)

	_, err = runner.Run(ctx, process.Options{Argv: argv, Check: true})
	return err
}

// findKubeManifests walks the whole tree for <...>/kube/*.yaml files,
// excluding temp/ release artifacts and manifests kubeval can't validate.
func findKubeManifests(fs afero.Fs) ([]string, error) {
	var manifests []string
	err := afero.Walk(fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".yaml" {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "kube" {
			return nil
		}
		ignore, err := shouldIgnoreManifest(fs, path)
		if err != nil {
			return err
		}
		if ignore {
			return nil
		}
		manifests = append(manifests, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(manifests)
	return manifests, nil
}

func shouldIgnoreManifest(fs afero.Fs, path string) (bool, error) {
	if strings.HasPrefix(path, TempDir+string(filepath.Separator)) || strings.HasPrefix(path, TempDir+"/") {
		return true, nil
	}
	if filepath.Base(path) == sealedSecretsManifestName {
		return true, nil
	}
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return false, err
	}
	return strings.Contains(string(content), sealedSecretsAPIVersion), nil
}
