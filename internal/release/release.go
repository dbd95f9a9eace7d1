// Package release implements the batch Release Orchestrator: driving a
// release of many Components against one environment, plus the adjacent
// whole-environment operations (building images, validating every
// component's configs) that the CLI front-end exposes alongside it.
package release

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/component"
	"github.com/nimbleci/shipctl/internal/config"
	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
	"github.com/nimbleci/shipctl/internal/secrets"
)

// TempDir is the root under which each release materializes its
// configs, in a subdirectory named after its release id.
const TempDir = "temp"

// AllComponents is the fallback component list build-images uses when
// the caller doesn't name any explicitly.
var AllComponents = []string{"service/pipeline-agent"}

const releaseIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const releaseIDLength = 5
const maxReleaseIDAttempts = 100

// Options configures one batch release.
type Options struct {
	Env            string
	Components     []string          // overrides settings.Components when non-empty
	Images         map[string]string // component path -> image override
	Tags           map[string]string // component path -> tag override
	Replicas       map[string]int32  // component path -> replica override
	ImagePrefix    string
	DryRun         bool
	KeepConfigs    bool
	NoRolloutWait  bool
	RolloutTimeout time.Duration // overrides settings.RolloutTimeout when nonzero
}

// GenerateReleaseID returns a 5-character lowercase-alphanumeric id that
// doesn't already have a temp directory, retrying on collision.
func GenerateReleaseID(fs afero.Fs) (string, error) {
	for attempt := 0; attempt < maxReleaseIDAttempts; attempt++ {
		id := randomID()
		exists, err := afero.Exists(fs, filepath.Join(TempDir, id))
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
		log.Warnf("Release id %s collided with an existing temp directory, retrying", id)
	}
	return "", ErrNoReleaseIDAvailable
}

func randomID() string {
	var b strings.Builder
	for i := 0; i < releaseIDLength; i++ {
		b.WriteByte(releaseIDAlphabet[rand.IntN(len(releaseIDAlphabet))])
	}
	return b.String()
}

// ParseOverrides parses a list of "key=value" strings into a map,
// as used for --image/--tag CLI flag values.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q, expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// ParseReplicaOverrides parses a list of "component=count" strings into a
// map, as used for the --replicas CLI flag.
func ParseReplicaOverrides(pairs []string) (map[string]int32, error) {
	out := map[string]int32{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q, expected component=count", pair)
		}
		count, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid replica count %q for %s: %w", v, k, err)
		}
		out[k] = int32(count)
	}
	return out, nil
}

// Release drives a batch release of Options.Components (or the
// environment's configured component list) against Options.Env, in the
// order documented for the Release Orchestrator: ensure context and
// namespace, release environment-wide secrets, then for every component
// in order: construct, apply overrides, patch from env, validate,
// release. Unconsumed --image/--tag/--replicas overrides are logged at
// error severity but do not fail the run. Returns the generated release
// id.
func Release(ctx context.Context, runner *process.Runner, fs afero.Fs, opts Options) (string, error) {
	relID, err := GenerateReleaseID(fs)
	if err != nil {
		return "", err
	}
	logging.BigLabel(fmt.Sprintf("Release %s to %s environment starting", relID, opts.Env))

	settings, err := config.Load(fs, opts.Env)
	if err != nil {
		return relID, err
	}

	components := opts.Components
	if len(components) == 0 {
		components = settings.Components
	}

	relPath := filepath.Join(TempDir, relID)

	images := cloneMap(opts.Images)
	tags := cloneMap(opts.Tags)
	replicaCounts := cloneReplicaMap(opts.Replicas)

	log.Info("")
	log.Info("Releasing components:")
	for _, path := range components {
		log.Infof(" - %s", path)
	}

	log.Info("")
	log.Info("Setting images and tags:")
	for _, path := range components {
		image := "(default)"
		tag := "(default)"
		if v, ok := images[path]; ok {
			image = v
		}
		if v, ok := tags[path]; ok {
			tag = v
		}
		log.Infof(" - %s = %s:%s", path, image, tag)
	}
	log.Info("")

	if _, err := runner.Run(ctx, process.Options{
		Argv:  []string{"kubectl", "config", "use-context", settings.KubeContext},
		Check: true,
	}); err != nil {
		return relID, fmt.Errorf("setting kube context: %w", err)
	}

	if _, err := runner.Run(ctx, process.Options{
		Argv:  []string{"kubectl", "create", "namespace", settings.KubeNamespace},
		Check: false,
	}); err != nil {
		return relID, fmt.Errorf("ensuring namespace: %w", err)
	}

	if err := secrets.ReleaseEnv(ctx, runner, fs, opts.Env, opts.DryRun); err != nil {
		return relID, fmt.Errorf("releasing environment secrets: %w", err)
	}

	rolloutTimeout := effectiveRolloutTimeout(opts, settings).String()

	for _, path := range components {
		log.Info("")
		logging.Label(fmt.Sprintf("Releasing component %s", path))

		c, err := component.Load(fs, path)
		if err != nil {
			return relID, fmt.Errorf("loading component %s: %w", path, err)
		}

		if v, ok := images[path]; ok {
			c.Image = v
			delete(images, path)
		}
		if v, ok := tags[path]; ok {
			c.Tag = v
			delete(tags, path)
		}
		if v, ok := replicaCounts[path]; ok {
			c.Replicas = &v
			delete(replicaCounts, path)
		}

		c.ImagePrefix = opts.ImagePrefix
		c.Namespace = settings.KubeNamespace
		c.KubeContext = settings.KubeContext
		c.ImagePullSecrets = settings.ImagePullSecrets

		if err := c.PatchFromEnv(fs, opts.Env); err != nil {
			return relID, fmt.Errorf("patching %s from environment %s: %w", path, opts.Env, err)
		}
		if err := c.Validate(ctx, runner, settings.KubevalSkipKinds); err != nil {
			return relID, fmt.Errorf("validating %s: %w", path, err)
		}
		if err := c.Release(ctx, runner, fs, relPath, opts.DryRun, opts.NoRolloutWait, rolloutTimeout); err != nil {
			return relID, fmt.Errorf("releasing %s: %w", path, err)
		}
	}

	reportUnconsumed("image", images)
	reportUnconsumed("tag", tags)
	reportUnconsumedReplicas(replicaCounts)

	if !opts.KeepConfigs {
		log.Infof("Removing temporary configurations from %s", relPath)
		if err := fs.RemoveAll(relPath); err != nil {
			return relID, fmt.Errorf("removing %s: %w", relPath, err)
		}
	}

	return relID, nil
}

// effectiveRolloutTimeout applies a CLI --rollout-timeout override on top
// of the environment's configured default, when one was given.
func effectiveRolloutTimeout(opts Options, settings *config.Settings) time.Duration {
	if opts.RolloutTimeout > 0 {
		return opts.RolloutTimeout
	}
	return settings.RolloutTimeout
}

func reportUnconsumed(kind string, overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}
	log.Errorf("Unprocessed %s configurations:", kind)
	keys := sortedKeys(overrides)
	for _, k := range keys {
		log.Errorf(" - %s=%s", k, overrides[k])
	}
}

func reportUnconsumedReplicas(overrides map[string]int32) {
	if len(overrides) == 0 {
		return
	}
	log.Error("Unprocessed replica configurations:")
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Errorf(" - %s=%d", k, overrides[k])
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneReplicaMap(m map[string]int32) map[string]int32 {
	out := make(map[string]int32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// BuildImages builds the Docker image for every given component path
// (or, for components without a Dockerfile, is a no-op per component).
func BuildImages(ctx context.Context, runner *process.Runner, fs afero.Fs, components []string, imagePrefix string, dryRun bool, buildArgs []string) error {
	logging.BigLabel("Building images")
	for _, path := range components {
		c, err := component.Load(fs, path)
		if err != nil {
			return fmt.Errorf("loading component %s: %w", path, err)
		}
		c.ImagePrefix = imagePrefix
		if err := c.Build(ctx, runner, fs, dryRun, buildArgs); err != nil {
			return fmt.Errorf("building %s: %w", path, err)
		}
	}
	return nil
}

// ValidateReleaseConfigs validates every component's base manifests and,
// after patching in each known environment's overrides, the patched
// result too — catching both base manifest errors and environment-
// specific breakage.
func ValidateReleaseConfigs(ctx context.Context, runner *process.Runner, fs afero.Fs) error {
	envs, err := config.ListEnvironments(fs)
	if err != nil {
		return err
	}

	for _, env := range envs {
		log.Infof("Validating configs for %s environment", env)
		settings, err := config.Load(fs, env)
		if err != nil {
			return fmt.Errorf("loading settings for %s: %w", env, err)
		}

		for _, path := range settings.Components {
			c, err := component.Load(fs, path)
			if err != nil {
				return fmt.Errorf("loading component %s: %w", path, err)
			}
			if err := c.Validate(ctx, runner, settings.KubevalSkipKinds); err != nil {
				return fmt.Errorf("validating %s (base) for %s: %w", path, env, err)
			}
			if err := c.PatchFromEnv(fs, env); err != nil {
				return fmt.Errorf("patching %s for %s: %w", path, env, err)
			}
			if err := c.Validate(ctx, runner, settings.KubevalSkipKinds); err != nil {
				return fmt.Errorf("validating %s (patched) for %s: %w", path, env, err)
			}
		}
	}
	return nil
}
