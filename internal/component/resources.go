package component

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/nimbleci/shipctl/internal/yamldoc"
)

// Resources returns the "<Kind>/<name>" projection of every materialized
// manifest, memoized until InvalidateResources is called.
func (c *Component) Resources(fs afero.Fs) (map[string]Resource, error) {
	if c.resources != nil {
		return c.resources, nil
	}

	resources := map[string]Resource{}
	for _, name := range c.KubeConfigNames {
		path := c.KubeConfigs[name]
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		docs, err := yamldoc.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}

		for _, doc := range docs {
			root := yamldoc.UnwrapDocument(doc)
			resource, err := resourceFromDoc(root)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			resources[resource.Kind+"/"+resource.Name] = resource
		}
	}

	c.resources = resources
	return resources, nil
}

// InvalidateResources forces the next Resources call to re-derive the
// projection from disk; call after rewriting KubeConfigs.
func (c *Component) InvalidateResources() {
	c.resources = nil
}

func resourceFromDoc(root *yaml.Node) (Resource, error) {
	kind, ok := yamldoc.GetString(root, "kind")
	if !ok {
		return Resource{}, fmt.Errorf("manifest has no kind")
	}
	name, ok := yamldoc.GetString(root, "metadata", "name")
	if !ok {
		return Resource{}, fmt.Errorf("manifest has no metadata.name")
	}
	return Resource{Kind: kind, Name: name, Selector: selectorFromDoc(root)}, nil
}

// selectorFromDoc returns "<label>=<value>" for the first label under
// spec.template.metadata.labels, or "" if there are none. Only the first
// label is used, matching the source tool's single-label selector.
func selectorFromDoc(root *yaml.Node) string {
	labels := yamldoc.Get(root, "spec", "template", "metadata", "labels")
	key, value, ok := yamldoc.FirstMappingPair(labels)
	if !ok {
		return ""
	}
	return key.Value + "=" + value.Value
}
