package component

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nimbleci/shipctl/internal/yamldoc"
)

// patchDocs applies the generic and per-kind patches to each document in
// docs, passing documents whose kind is in skipPatchKinds through
// unpatched. docs are DocumentNode-wrapped, as returned by
// yamldoc.LoadBytes.
func (c *Component) patchDocs(docs []*yaml.Node) ([]*yaml.Node, error) {
	out := make([]*yaml.Node, 0, len(docs))
	for _, doc := range docs {
		root := yamldoc.UnwrapDocument(doc)
		kind, _ := yamldoc.GetString(root, "kind")

		if skipPatchKinds[kind] {
			log.Infof("Skipping %s patching", kind)
			out = append(out, doc)
			continue
		}

		c.patchGeneric(root)

		switch kind {
		case "Deployment", "DaemonSet", "StatefulSet":
			log.Infof("Patching found %s", kind)
			if err := c.patchWorkload(root, false); err != nil {
				return nil, err
			}
		case "CronJob":
			log.Info("Patching found CronJob")
			if err := c.patchWorkload(root, true); err != nil {
				return nil, err
			}
		}

		out = append(out, doc)
	}
	return out, nil
}

func (c *Component) patchGeneric(root *yaml.Node) {
	log.Info("Applying generic patches")
	if c.Namespace == "" {
		return
	}
	log.Infof("Updating namespace to %s", c.Namespace)
	yamldoc.Set(root, yamldoc.ScalarString(c.Namespace), "metadata", "namespace")
}

// workloadSpecPath returns the path segments to a workload's pod spec and
// to its replicas field. CronJob nests an extra jobTemplate.spec level.
func workloadSpecPath(cronJob bool) (podSpec []string, replicas []string) {
	if cronJob {
		return []string{"spec", "jobTemplate", "spec", "template", "spec"}, []string{"spec", "jobTemplate", "spec", "replicas"}
	}
	return []string{"spec", "template", "spec"}, []string{"spec", "replicas"}
}

func (c *Component) patchWorkload(root *yaml.Node, cronJob bool) error {
	podSpecPath, replicasPath := workloadSpecPath(cronJob)

	podSpec := yamldoc.Get(root, podSpecPath...)
	if podSpec == nil {
		return fmt.Errorf("manifest has no %s", strings.Join(podSpecPath, "."))
	}

	if err := c.patchContainers(podSpec); err != nil {
		return err
	}
	c.patchImagePullSecrets(podSpec)
	c.patchReplicas(root, replicasPath)
	return nil
}

func (c *Component) patchContainers(podSpec *yaml.Node) error {
	log.Info("Patching containers")
	containers := yamldoc.Get(podSpec, "containers")
	if containers == nil || containers.Kind != yaml.SequenceNode {
		return fmt.Errorf("pod spec has no containers")
	}

	for _, container := range containers.Content {
		imageNode := yamldoc.Get(container, "image")
		if imageNode == nil {
			continue
		}

		image, tag, err := splitImageTag(imageNode.Value)
		if err != nil {
			return err
		}

		if c.Image != "" {
			log.Infof("Patching image from %s to %s", image, c.Image)
			image = c.Image
		}
		if c.Tag != "" {
			log.Infof("Patching tag from %s to %s", tag, c.Tag)
			tag = c.Tag
		}

		yamldoc.Set(container, yamldoc.ScalarString(image+":"+tag), "image")
	}
	return nil
}

// splitImageTag splits image at its first colon, matching the source
// tool's contract exactly: a registry host with a port
// ("host:5000/repo:tag") is not supported by this split, same as upstream.
func splitImageTag(image string) (ref, tag string, err error) {
	idx := strings.Index(image, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("image %q has no tag", image)
	}
	return image[:idx], image[idx+1:], nil
}

func (c *Component) patchReplicas(root *yaml.Node, replicasPath []string) {
	if c.Replicas == nil {
		return
	}
	if yamldoc.Get(root, replicasPath...) == nil {
		return
	}
	yamldoc.Set(root, yamldoc.ScalarInt(*c.Replicas), replicasPath...)
}

func (c *Component) patchImagePullSecrets(podSpec *yaml.Node) {
	image := c.Image
	if image == "" {
		if containers := yamldoc.Get(podSpec, "containers"); containers != nil && len(containers.Content) > 0 {
			if imageNode := yamldoc.Get(containers.Content[0], "image"); imageNode != nil {
				image, _, _ = splitImageTag(imageNode.Value)
			}
		}
	}

	host, _, found := strings.Cut(image, "/")
	if !found {
		return
	}
	secret, ok := c.ImagePullSecrets[host]
	if !ok {
		return
	}

	log.Infof("Patching imagePullSecrets to %s", secret)
	pullSecrets := &yaml.Node{
		Kind: yaml.SequenceNode,
		Tag:  "!!seq",
		Content: []*yaml.Node{
			{
				Kind:    yaml.MappingNode,
				Tag:     "!!map",
				Content: []*yaml.Node{yamldoc.ScalarString("name"), yamldoc.ScalarString(secret)},
			},
		},
	}
	yamldoc.Set(podSpec, pullSecrets, "imagePullSecrets")
}
