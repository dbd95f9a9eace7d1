// Package component implements the in-memory model of one deployable
// unit: its base manifests, environment-scoped overrides/merges, and the
// operations that validate, build, patch and release it.
package component

import (
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// restartKinds are the workload kinds that get a rollout restart and
// wait after being applied.
var restartKinds = map[string]bool{
	"Deployment":  true,
	"DaemonSet":   true,
	"StatefulSet": true,
}

// skipPatchKinds never go through the patch pipeline; they carry no
// container/replica fields to rewrite.
var skipPatchKinds = map[string]bool{
	"ClusterRole":        true,
	"ClusterRoleBinding": true,
	"Role":               true,
	"RoleBinding":        true,
	"ServiceAccount":     true,
}

// Resource is a projection of one materialized manifest, keyed by
// "<Kind>/<name>" in Resources.
type Resource struct {
	Name     string
	Kind     string
	Selector string
}

// Component is one deployable service: a filesystem path plus the
// environment bindings layered onto it before release.
type Component struct {
	Path             string
	OrigPath         string
	Name             string
	Image            string
	Tag              string
	ImagePrefix      string
	Replicas         *int32
	Namespace        string
	KubeContext      string
	ImagePullSecrets map[string]string

	// KubeConfigNames preserves discovery order; KubeConfigs maps each
	// name to its current materialized path (rewritten as overrides,
	// merges and patches are applied).
	KubeConfigNames []string
	KubeConfigs     map[string]string

	KubeMerges map[string]string

	ObsoleteNames   []string
	ObsoleteConfigs map[string]string

	resources map[string]Resource
}

// Load constructs a Component rooted at path, discovering its base
// manifests (path/kube/*.yaml) and obsolete manifests
// (path/kube/obsolete/*.yaml).
func Load(fs afero.Fs, path string) (*Component, error) {
	c := &Component{
		Path:             path,
		OrigPath:         path,
		Name:             pathToName(path),
		Tag:              "latest",
		ImagePullSecrets: map[string]string{},
		KubeMerges:       map[string]string{},
	}

	names, configs, err := globYAML(fs, filepath.Join(path, "kube"))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		log.Infof("Found kube config %s for %s", name, c.Name)
	}
	c.KubeConfigNames, c.KubeConfigs = names, configs

	obsNames, obsConfigs, err := globYAML(fs, filepath.Join(path, "kube", "obsolete"))
	if err != nil {
		return nil, err
	}
	for _, name := range obsNames {
		log.Infof("Found obsoleted kube config %s for %s", name, c.Name)
	}
	c.ObsoleteNames, c.ObsoleteConfigs = obsNames, obsConfigs

	return c, nil
}

// globYAML lists *.yaml files directly under dir, sorted for determinism
// (afero/os glob order is not guaranteed), returning parallel name/path
// data. A missing directory is not an error: it simply yields no files.
func globYAML(fs afero.Fs, dir string) ([]string, map[string]string, error) {
	matches, err := afero.Glob(fs, filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(matches)

	names := make([]string, 0, len(matches))
	configs := make(map[string]string, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		names = append(names, name)
		configs[name] = m
	}
	return names, configs, nil
}

func pathToName(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}

// FullImageName is the fully qualified image reference this component
// builds and deploys by default: <image_prefix><name>:<tag>.
func (c *Component) FullImageName() string {
	return c.ImagePrefix + c.Name + ":" + c.Tag
}

func (c *Component) String() string {
	return "<Component path=" + c.Path + " image=" + c.Image + " tag=" + c.Tag + ">"
}
