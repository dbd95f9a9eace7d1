package component

import (
	"fmt"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/template"
)

// RenderTemplates expands this component's merge-templates and
// override-templates into concrete manifests under
// envs/<env>/{merges,overrides}/<path>/kube/<name>.yaml, returning the
// paths written. Any existing output file that still carries the
// provenance header for its source is removed before rendering, so a
// deleted or renamed template doesn't leave a stale generated file
// behind; files without the header are left alone as manually authored.
func (c *Component) RenderTemplates(fs afero.Fs, env string, vars map[string]any) ([]string, error) {
	var written []string

	for _, kind := range []string{"merge", "override"} {
		dir := filepath.Join(c.Path, "kube", kind+"-templates")
		outDir := filepath.Join("envs", env, kind+"s", c.Path, "kube")

		templates, err := afero.Glob(fs, filepath.Join(dir, "*.yaml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(templates)

		if err := cleanStaleOutputs(fs, outDir, dir, templates); err != nil {
			return nil, err
		}

		for _, tplPath := range templates {
			name := filepath.Base(tplPath)
			outPath := filepath.Join(outDir, name)

			if manual, err := isManuallyAuthored(fs, outPath, tplPath); err != nil {
				return nil, err
			} else if manual {
				log.Infof("Keeping manually authored %s", outPath)
				continue
			}

			body, err := afero.ReadFile(fs, tplPath)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", tplPath, err)
			}

			rendered, err := template.Render(string(body), vars, tplPath)
			if err != nil {
				return nil, err
			}

			if err := fs.MkdirAll(outDir, 0o700); err != nil {
				return nil, err
			}
			log.Infof("Rendering %s to %s", tplPath, outPath)
			if err := afero.WriteFile(fs, outPath, []byte(rendered), 0o644); err != nil {
				return nil, err
			}
			written = append(written, outPath)
		}
	}

	return written, nil
}

// isManuallyAuthored reports whether an existing output file at outPath
// should be left untouched: it exists and its content does not begin
// with the provenance header naming tplPath as its source.
func isManuallyAuthored(fs afero.Fs, outPath, tplPath string) (bool, error) {
	exists, err := afero.Exists(fs, outPath)
	if err != nil || !exists {
		return false, err
	}
	data, err := afero.ReadFile(fs, outPath)
	if err != nil {
		return false, err
	}
	return !template.HasProvenanceHeader(string(data), tplPath), nil
}

// cleanStaleOutputs removes every generated file in outDir whose
// provenance header names a template that either no longer exists or
// whose generated file no longer matches a known template name.
func cleanStaleOutputs(fs afero.Fs, outDir, tplDir string, templates []string) error {
	existing, err := afero.Glob(fs, filepath.Join(outDir, "*.yaml"))
	if err != nil {
		return err
	}

	known := map[string]bool{}
	for _, t := range templates {
		known[filepath.Join(tplDir, filepath.Base(t))] = true
	}

	for _, outPath := range existing {
		name := filepath.Base(outPath)
		sourcePath := filepath.Join(tplDir, name)
		data, err := afero.ReadFile(fs, outPath)
		if err != nil {
			return err
		}
		if !template.HasProvenanceHeader(string(data), sourcePath) {
			continue
		}
		if known[sourcePath] {
			continue
		}
		log.Infof("Removing stale generated file %s", outPath)
		if err := fs.Remove(outPath); err != nil {
			return err
		}
	}
	return nil
}
