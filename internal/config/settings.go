// Package config loads per-environment settings: cluster context and
// namespace, the ordered component list, pull-secret and replica
// defaults, and the variable bag handed to the Template Renderer.
//
// The source tool (devops/lib/utils.py::load_env_settings) resolves
// these by dynamically importing envs/<env>/settings.py as a Python
// module and reading module-level attributes. That's out of scope here
// per spec.md §1 ("locating and reading environment configuration
// modules" is an external collaborator) — this package replaces it with
// a typed record loaded from a structured file via
// github.com/spf13/viper, the same library the teacher binds its CLI
// flags through.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultRolloutTimeout is applied when an environment's settings don't
// override it, matching the 300s default spec'd for rollout waits.
const DefaultRolloutTimeout = 300 * time.Second

// Settings is one environment's configuration bag, equivalent to the
// module-level attributes load_env_settings reads off an envs/<env>/
// settings.py module.
type Settings struct {
	Components        []string          `mapstructure:"components"`
	KubeContext       string            `mapstructure:"kube_context"`
	KubeNamespace     string            `mapstructure:"kube_namespace"`
	ImagePullSecrets  map[string]string `mapstructure:"image_pull_secrets"`
	Replicas          map[string]int32  `mapstructure:"replicas"`
	TemplateVariables map[string]any    `mapstructure:"template_variables"`
	KubevalSkipKinds  []string          `mapstructure:"kubeval_skip_kinds"`
	RolloutTimeout    time.Duration     `mapstructure:"rollout_timeout"`
}

// Load reads envs/<env>/settings.<ext> (any format viper supports: yaml,
// yml, json, toml) relative to cwd, applying the same defaults the
// source tool applies after import: an empty IMAGE_PULL_SECRETS and
// REPLICAS rather than a missing key failing the load.
func Load(fs afero.Fs, env string) (*Settings, error) {
	// Map keys such as registry hosts contain dots, so viper's default "."
	// key delimiter would split them into nested keys.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetFs(fs)
	v.SetConfigName("settings")
	v.AddConfigPath(fmt.Sprintf("envs/%s", env))

	v.SetDefault("image_pull_secrets", map[string]string{})
	v.SetDefault("replicas", map[string]int32{})
	v.SetDefault("kubeval_skip_kinds", []string{})
	v.SetDefault("rollout_timeout", DefaultRolloutTimeout)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading settings for environment %q: %w", env, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parsing settings for environment %q: %w", env, err)
	}

	// viper lower-cases every map key it reads, while templates reference
	// variables case-sensitively, so template_variables is re-read verbatim
	// from YAML or JSON settings files.
	if raw, err := afero.ReadFile(fs, v.ConfigFileUsed()); err == nil {
		var verbatim struct {
			TemplateVariables map[string]any `yaml:"template_variables"`
		}
		if yaml.Unmarshal(raw, &verbatim) == nil && verbatim.TemplateVariables != nil {
			s.TemplateVariables = verbatim.TemplateVariables
		}
	}
	return &s, nil
}

// ListEnvironments returns the environment names this tool knows about:
// the immediate subdirectories of envs/ that don't start with "__",
// mirroring the source tool's list_envs (which skipped Python package
// directories named with a leading double underscore).
func ListEnvironments(fs afero.Fs) ([]string, error) {
	entries, err := afero.ReadDir(fs, "envs")
	if err != nil {
		return nil, err
	}
	var envs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), "__") {
			envs = append(envs, entry.Name())
		}
	}
	return envs, nil
}
