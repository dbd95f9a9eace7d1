package component

import (
	"testing"

	"github.com/spf13/afero"
)

func TestFullImageName(t *testing.T) {
	c := &Component{Name: "service-test-service", Tag: "latest"}
	if got := c.FullImageName(); got != "service-test-service:latest" {
		t.Errorf("FullImageName() = %q, want %q", got, "service-test-service:latest")
	}

	c = &Component{Name: "service-test-service", ImagePrefix: "myproj-", Tag: "v1.2.3"}
	if got := c.FullImageName(); got != "myproj-service-test-service:v1.2.3" {
		t.Errorf("FullImageName() = %q, want %q", got, "myproj-service-test-service:v1.2.3")
	}
}

func TestPathToName(t *testing.T) {
	if got := pathToName("service/test-service"); got != "service-test-service" {
		t.Errorf("pathToName() = %q, want %q", got, "service-test-service")
	}
}

func TestLoadDiscoversManifestsAndObsolete(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/01-deploy.yaml", "kind: Deployment\n")
	mustWriteFile(t, fs, "service/test/kube/02-svc.yaml", "kind: Service\n")
	mustWriteFile(t, fs, "service/test/kube/obsolete/00-old.yaml", "kind: ConfigMap\n")

	c, err := Load(fs, "service/test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Name != "service-test" {
		t.Errorf("Name = %q, want service-test", c.Name)
	}
	if c.Tag != "latest" {
		t.Errorf("Tag = %q, want latest", c.Tag)
	}
	if len(c.KubeConfigNames) != 2 || c.KubeConfigNames[0] != "01-deploy.yaml" || c.KubeConfigNames[1] != "02-svc.yaml" {
		t.Fatalf("KubeConfigNames = %v", c.KubeConfigNames)
	}
	if len(c.ObsoleteNames) != 1 || c.ObsoleteNames[0] != "00-old.yaml" {
		t.Fatalf("ObsoleteNames = %v", c.ObsoleteNames)
	}
}

func TestLoadWithNoManifestsIsNotAnError(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := Load(fs, "service/empty")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.KubeConfigNames) != 0 {
		t.Errorf("KubeConfigNames = %v, want empty", c.KubeConfigNames)
	}
}

func mustWriteFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
