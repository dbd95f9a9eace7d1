package component

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/process"
	"github.com/nimbleci/shipctl/internal/yamldoc"
)

// Validate fails with ErrNoManifests if the component has no base
// manifests. If runner is non-nil, it additionally invokes kubeval
// against every manifest file, failing with ErrValidation on a nonzero
// exit.
func (c *Component) Validate(ctx context.Context, runner *process.Runner, skipKinds []string) error {
	if len(c.KubeConfigNames) == 0 {
		return fmt.Errorf("%w: %s", ErrNoManifests, filepath.Join(c.Path, "kube"))
	}
	if runner == nil {
		return nil
	}

	for _, name := range c.KubeConfigNames {
		path := c.KubeConfigs[name]
		argv := []string{"kubeval"}
		if len(skipKinds) > 0 {
			argv = append(argv, "--skip-kinds", strings.Join(skipKinds, ","))
		}
		argv = append(argv, path)

		res, err := runner.Run(ctx, process.Options{Argv: argv})
		if err != nil {
			return err
		}
		if res.ReturnCode != 0 {
			return fmt.Errorf("%w: %s", ErrValidation, path)
		}
	}
	return nil
}

// Build invokes docker build with the component's fully qualified image
// name, a no-op if the component has no Dockerfile. buildArgs are passed
// through as repeated --build-arg K=V flags, in the order given.
func (c *Component) Build(ctx context.Context, runner *process.Runner, fs afero.Fs, dryRun bool, buildArgs []string) error {
	log.Infof("Building %s", c.Path)
	dockerfile := filepath.Join(c.Path, "Dockerfile")

	exists, err := afero.Exists(fs, dockerfile)
	if err != nil {
		return err
	}
	if !exists {
		log.Infof("No Dockerfile for %s component", c.Name)
		return nil
	}

	if dryRun {
		log.Infof("[DRY RUN] Building %s Docker image", c.Name)
		return nil
	}

	log.Infof("Building %s Docker image", c.Name)
	tag := c.FullImageName()
	if _, err := name.ParseReference(tag); err != nil {
		return fmt.Errorf("invalid image reference %q: %w", tag, err)
	}

	argv := []string{"docker", "build"}
	for _, arg := range buildArgs {
		argv = append(argv, "--build-arg", arg)
	}
	argv = append(argv, c.Path, "-t", tag)

	_, err = runner.Run(ctx, process.Options{Argv: argv, Stream: true, Check: true})
	return err
}

// PatchFromEnv layers environment-scoped overrides and merges onto this
// component: any envs/<env>/overrides/<path>/kube/*.yaml file replaces the
// same-named base manifest, and any envs/<env>/merges/<path>/kube/*.yaml
// file is registered for structural merging during Release.
func (c *Component) PatchFromEnv(fs afero.Fs, env string) error {
	overridePath := filepath.Join("envs", env, "overrides", c.Path, "kube")
	overrides, err := afero.Glob(fs, filepath.Join(overridePath, "*.yaml"))
	if err != nil {
		return err
	}
	for _, m := range overrides {
		name := filepath.Base(m)
		log.Infof("Found kube override %s for %s in %s", name, c.Name, env)
		if _, exists := c.KubeConfigs[name]; !exists {
			c.KubeConfigNames = append(c.KubeConfigNames, name)
		}
		c.KubeConfigs[name] = m
	}

	mergePath := filepath.Join("envs", env, "merges", c.Path, "kube")
	merges, err := afero.Glob(fs, filepath.Join(mergePath, "*.yaml"))
	if err != nil {
		return err
	}
	for _, m := range merges {
		name := filepath.Base(m)
		log.Infof("Found kube merges %s for %s in %s", name, c.Name, env)
		c.KubeMerges[name] = m
	}

	return nil
}

// Release materializes, applies, restarts and runs post-release hooks
// for this component, in that order.
func (c *Component) Release(ctx context.Context, runner *process.Runner, fs afero.Fs, relPath string, dryRun, noRolloutWait bool, rolloutTimeout string) error {
	if err := c.prepareConfigs(fs, relPath); err != nil {
		return err
	}
	if err := c.doRelease(ctx, runner, dryRun); err != nil {
		return err
	}
	if err := c.restartResources(ctx, runner, fs, dryRun, noRolloutWait, rolloutTimeout); err != nil {
		return err
	}
	return c.postRelease(ctx, runner, fs, dryRun)
}

func (c *Component) prepareConfigs(fs afero.Fs, relPath string) error {
	dst := filepath.Join(relPath, c.Path)
	kubeDst := filepath.Join(dst, "kube")
	if err := fs.MkdirAll(kubeDst, 0o700); err != nil {
		return err
	}
	log.Infof("Writing configs to %s", dst)

	dockerfile := filepath.Join(c.Path, "Dockerfile")
	if exists, err := afero.Exists(fs, dockerfile); err != nil {
		return err
	} else if exists {
		log.Info("Copying Dockerfile")
		data, err := afero.ReadFile(fs, dockerfile)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(fs, filepath.Join(dst, "Dockerfile"), data, 0o644); err != nil {
			return err
		}
	}

	for _, name := range c.KubeConfigNames {
		srcPath := c.KubeConfigs[name]
		log.Infof("Patching %s", filepath.Join(c.Path, "kube", name))

		data, err := afero.ReadFile(fs, srcPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", srcPath, err)
		}
		docs, err := yamldoc.LoadBytes(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", srcPath, err)
		}

		docs, err = c.patchDocs(docs)
		if err != nil {
			return fmt.Errorf("patching %s: %w", srcPath, err)
		}

		if mergePath, ok := c.KubeMerges[name]; ok {
			mergeData, err := afero.ReadFile(fs, mergePath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", mergePath, err)
			}
			overrides, err := yamldoc.LoadBytes(mergeData)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", mergePath, err)
			}
			docs, err = yamldoc.Merge(docs, overrides)
			if err != nil {
				return fmt.Errorf("merging %s: %w", mergePath, err)
			}
		}

		out, err := yamldoc.DumpBytes(docs)
		if err != nil {
			return fmt.Errorf("serializing %s: %w", srcPath, err)
		}

		dstPath := filepath.Join(kubeDst, name)
		if err := afero.WriteFile(fs, dstPath, out, 0o644); err != nil {
			return err
		}
		c.KubeConfigs[name] = dstPath
	}

	c.Path = dst
	c.InvalidateResources()
	return nil
}

func (c *Component) doRelease(ctx context.Context, runner *process.Runner, dryRun bool) error {
	for _, name := range c.KubeConfigNames {
		if err := c.releaseKubeConfig(ctx, runner, c.KubeConfigs[name], dryRun); err != nil {
			return err
		}
	}
	for _, name := range c.ObsoleteNames {
		if err := c.deleteKubeConfig(ctx, runner, c.ObsoleteConfigs[name], dryRun); err != nil {
			return err
		}
	}
	return nil
}

func (c *Component) releaseKubeConfig(ctx context.Context, runner *process.Runner, path string, dryRun bool) error {
	if dryRun {
		log.Infof("[DRY RUN] Applying %s", path)
		return nil
	}
	log.Infof("Applying %s", path)
	_, err := runner.Run(ctx, process.Options{Argv: []string{"kubectl", "apply", "-f", path}, Check: true})
	return err
}

func (c *Component) deleteKubeConfig(ctx context.Context, runner *process.Runner, path string, dryRun bool) error {
	if dryRun {
		log.Infof("[DRY RUN] Deleting %s", path)
		return nil
	}
	log.Infof("Deleting %s", path)
	_, err := runner.Run(ctx, process.Options{Argv: []string{"kubectl", "delete", "-f", path}, Check: true})
	return err
}

// restartResources rolls every restartable resource (Deployment, DaemonSet,
// StatefulSet) discovered in this component's materialized manifests, then
// waits for the rollout unless noRolloutWait is set.
func (c *Component) restartResources(ctx context.Context, runner *process.Runner, fs afero.Fs, dryRun, noRolloutWait bool, rolloutTimeout string) error {
	resources, err := c.Resources(fs)
	if err != nil {
		return err
	}
	for _, resource := range resources {
		if !restartKinds[resource.Kind] {
			continue
		}
		if err := c.restartResource(ctx, runner, resource, dryRun, noRolloutWait, rolloutTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (c *Component) restartResource(ctx context.Context, runner *process.Runner, resource Resource, dryRun, noRolloutWait bool, rolloutTimeout string) error {
	ref := strings.ToLower(resource.Kind) + "/" + resource.Name

	if dryRun {
		log.Infof("[DRY RUN] Restarting %s", ref)
		return nil
	}

	log.Infof("Restarting %s", ref)
	argv := []string{"kubectl"}
	if c.Namespace != "" {
		argv = append(argv, "-n", c.Namespace)
	}
	argv = append(argv, "rollout", "restart", ref)
	if _, err := runner.Run(ctx, process.Options{Argv: argv, Check: true}); err != nil {
		return err
	}

	if noRolloutWait {
		return nil
	}

	log.Infof("Waiting for rollout of %s", ref)
	argv = []string{"kubectl"}
	if c.Namespace != "" {
		argv = append(argv, "-n", c.Namespace)
	}
	argv = append(argv, "rollout", "status", ref)
	if rolloutTimeout != "" {
		argv = append(argv, "--timeout", rolloutTimeout)
	}
	_, err := runner.Run(ctx, process.Options{Argv: argv, Check: true})
	return err
}

type podList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Spec struct {
			Containers []struct {
				Image string `json:"image"`
			} `json:"containers"`
		} `json:"spec"`
		Status struct {
			Phase string `json:"phase"`
		} `json:"status"`
	} `json:"items"`
}

// postRelease runs OrigPath/post-release.sh inside one running pod of each
// restartable resource, once the new image has rolled out. A component
// without a post-release.sh script is a no-op.
func (c *Component) postRelease(ctx context.Context, runner *process.Runner, fs afero.Fs, dryRun bool) error {
	script := filepath.Join(c.OrigPath, "post-release.sh")
	exists, err := afero.Exists(fs, script)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if dryRun {
		log.Infof("[DRY RUN] Running post-release.sh for %s", c.Name)
		return nil
	}

	resources, err := c.Resources(fs)
	if err != nil {
		return err
	}
	for _, resource := range resources {
		if !restartKinds[resource.Kind] {
			continue
		}
		if err := c.tryPostRelease(ctx, runner, resource); err != nil {
			return err
		}
	}
	return nil
}

func (c *Component) tryPostRelease(ctx context.Context, runner *process.Runner, resource Resource) error {
	if resource.Selector == "" {
		return nil
	}

	argv := []string{"kubectl"}
	if c.Namespace != "" {
		argv = append(argv, "-n", c.Namespace)
	}
	argv = append(argv, "get", "pods", "-l", resource.Selector, "-o", "json")

	res, err := runner.Run(ctx, process.Options{Argv: argv, Check: true})
	if err != nil {
		return err
	}

	var pods podList
	if err := json.Unmarshal(res.Stdout, &pods); err != nil {
		return fmt.Errorf("parsing pod list for %s: %w", resource.Name, err)
	}

	image := c.FullImageName()
	var candidates []string
	for _, pod := range pods.Items {
		if pod.Status.Phase != "Running" {
			continue
		}
		for _, container := range pod.Spec.Containers {
			if container.Image == image {
				candidates = append(candidates, pod.Metadata.Name)
				break
			}
		}
	}

	if len(candidates) == 0 {
		return fmt.Errorf("%w: %s", ErrNoPodsForPostRelease, resource.Name)
	}
	pod := candidates[rand.IntN(len(candidates))]

	log.Infof("Running post-release.sh in %s", pod)
	execArgv := []string{"kubectl"}
	if c.Namespace != "" {
		execArgv = append(execArgv, "-n", c.Namespace)
	}
	execArgv = append(execArgv, "exec", "-it", pod, "sh", "post-release.sh")
	_, err = runner.Run(ctx, process.Options{Argv: execArgv, Check: false})
	return err
}
