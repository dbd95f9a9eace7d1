package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/component"
	"github.com/nimbleci/shipctl/internal/config"
	"github.com/nimbleci/shipctl/internal/logging"
)

// UpdateFromTemplates renders every component's merge/override templates
// for env, using the environment's template variable bag, and removes
// any previously rendered output left behind by a component that's since
// been dropped from the environment's component list. Returns the paths
// written. ctx is accepted for signature symmetry with the rest of the
// package's operations even though rendering performs no process calls.
func UpdateFromTemplates(_ context.Context, fs afero.Fs, env string) ([]string, error) {
	logging.Label(fmt.Sprintf("Updating generated configs from templates for %s", env))

	settings, err := config.Load(fs, env)
	if err != nil {
		return nil, err
	}

	active := map[string]bool{}
	for _, path := range settings.Components {
		active[path] = true
	}

	rendered := map[string]bool{}
	for _, kind := range []string{"overrides", "merges"} {
		paths, err := renderedComponentPaths(fs, filepath.Join("envs", env, kind))
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			rendered[p] = true
		}
	}

	all := map[string]bool{}
	for p := range active {
		all[p] = true
	}
	for p := range rendered {
		all[p] = true
	}

	var paths []string
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var written []string
	for _, path := range paths {
		if active[path] {
			c, err := component.Load(fs, path)
			if err != nil {
				return nil, fmt.Errorf("loading component %s: %w", path, err)
			}
			out, err := c.RenderTemplates(fs, env, settings.TemplateVariables)
			if err != nil {
				return nil, fmt.Errorf("rendering templates for %s: %w", path, err)
			}
			written = append(written, out...)
			continue
		}

		for _, kind := range []string{"overrides", "merges"} {
			dir := filepath.Join("envs", env, kind, path)
			if err := fs.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("removing stale rendered configs for %s: %w", path, err)
			}
		}
	}

	return written, nil
}

// renderedComponentPaths finds every component path with a rendered
// kube/ directory under base (envs/<env>/overrides or .../merges),
// returned relative to base.
func renderedComponentPaths(fs afero.Fs, base string) ([]string, error) {
	exists, err := afero.DirExists(fs, base)
	if err != nil || !exists {
		return nil, err
	}

	var paths []string
	err = afero.Walk(fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || filepath.Base(path) != "kube" {
			return nil
		}
		componentDir := filepath.Dir(path)
		rel, err := filepath.Rel(base, componentDir)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
