package component

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestRenderTemplatesWritesMergeAndOverrideOutputs(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/merge-templates/01-replicas.yaml",
		"spec:\n  replicas: {{ .Replicas }}\n")
	mustWriteFile(t, fs, "service/test/kube/override-templates/02-image.yaml",
		"spec:\n  template:\n    spec:\n      containers: []\n")

	c := &Component{Path: "service/test"}
	written, err := c.RenderTemplates(fs, "prod", map[string]any{"Replicas": 3})
	if err != nil {
		t.Fatalf("RenderTemplates: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("written = %v, want 2 paths", written)
	}

	data, err := afero.ReadFile(fs, "envs/prod/merges/service/test/kube/01-replicas.yaml")
	if err != nil {
		t.Fatalf("reading rendered merge file: %v", err)
	}
	if !containsAll(string(data), "Generated by shipctl", "replicas: 3") {
		t.Errorf("rendered content missing header or value: %q", data)
	}
}

func TestRenderTemplatesFailsOnUndefinedVariable(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/merge-templates/01-replicas.yaml",
		"spec:\n  replicas: {{ .Missing }}\n")

	c := &Component{Path: "service/test"}
	if _, err := c.RenderTemplates(fs, "prod", map[string]any{}); err == nil {
		t.Error("expected a TemplateError for an undefined variable")
	}
}

func TestRenderTemplatesRemovesStaleGeneratedFileWhenTemplateDeleted(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/merge-templates/01-replicas.yaml",
		"spec:\n  replicas: {{ .Replicas }}\n")

	c := &Component{Path: "service/test"}
	if _, err := c.RenderTemplates(fs, "prod", map[string]any{"Replicas": 3}); err != nil {
		t.Fatalf("first render: %v", err)
	}

	if err := fs.Remove("service/test/kube/merge-templates/01-replicas.yaml"); err != nil {
		t.Fatalf("removing template: %v", err)
	}

	if _, err := c.RenderTemplates(fs, "prod", map[string]any{"Replicas": 3}); err != nil {
		t.Fatalf("second render: %v", err)
	}

	exists, err := afero.Exists(fs, "envs/prod/merges/service/test/kube/01-replicas.yaml")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("stale generated file should have been removed")
	}
}

func TestRenderTemplatesKeepsManuallyAuthoredOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/merge-templates/01-replicas.yaml",
		"spec:\n  replicas: {{ .Replicas }}\n")
	mustWriteFile(t, fs, "envs/prod/merges/service/test/kube/01-replicas.yaml",
		"spec:\n  replicas: 42 # hand written\n")

	c := &Component{Path: "service/test"}
	if _, err := c.RenderTemplates(fs, "prod", map[string]any{"Replicas": 3}); err != nil {
		t.Fatalf("RenderTemplates: %v", err)
	}

	data, err := afero.ReadFile(fs, "envs/prod/merges/service/test/kube/01-replicas.yaml")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !containsAll(string(data), "42") {
		t.Errorf("manually authored content was overwritten: %q", data)
	}
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
