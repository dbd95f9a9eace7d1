package release

import (
	"testing"

	"github.com/spf13/afero"
)

func TestUpdateFromTemplatesRendersActiveComponentTemplates(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/a/kube/override-templates/extra.yaml", "value: {{ .Message }}\n")
	mustWriteFile(t, fs, "envs/prod/settings.yaml", "components: [\"service/a\"]\nkube_context: ctx\nkube_namespace: ns\ntemplate_variables:\n  Message: hello\n")

	written, err := UpdateFromTemplates(nil, fs, "prod")
	if err != nil {
		t.Fatalf("UpdateFromTemplates: %v", err)
	}
	if len(written) != 1 || written[0] != "envs/prod/overrides/service/a/kube/extra.yaml" {
		t.Fatalf("written = %v", written)
	}
	exists, err := afero.Exists(fs, "envs/prod/overrides/service/a/kube/extra.yaml")
	if err != nil || !exists {
		t.Fatalf("expected rendered file to exist, err=%v", err)
	}
}

func TestUpdateFromTemplatesRemovesOutputsForDroppedComponents(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "envs/prod/settings.yaml", "components: []\nkube_context: ctx\nkube_namespace: ns\n")
	mustWriteFile(t, fs, "envs/prod/overrides/service/a/kube/extra.yaml", "# Generated by shipctl from service/a/kube/override-templates/extra.yaml — do not edit by hand\nvalue: stale\n")

	if _, err := UpdateFromTemplates(nil, fs, "prod"); err != nil {
		t.Fatalf("UpdateFromTemplates: %v", err)
	}

	exists, err := afero.Exists(fs, "envs/prod/overrides/service/a/kube/extra.yaml")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected stale rendered output for a dropped component to be removed")
	}
}
