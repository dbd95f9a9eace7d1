package component

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/nimbleci/shipctl/internal/yamldoc"
)

func TestValidateFailsWithNoManifests(t *testing.T) {
	c := &Component{}
	err := c.Validate(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestValidateWithNilRunnerOnlyChecksManifestsExist(t *testing.T) {
	c := &Component{KubeConfigNames: []string{"01-deploy.yaml"}}
	if err := c.Validate(context.Background(), nil, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuildIsNoopWithoutDockerfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &Component{Path: "service/test", Name: "service-test"}
	if err := c.Build(context.Background(), nil, fs, false, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuildDryRunNeverInvokesRunner(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/Dockerfile", "FROM scratch\n")
	c := &Component{Path: "service/test", Name: "service-test", Tag: "latest"}
	if err := c.Build(context.Background(), nil, fs, true, nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestPatchFromEnvRegistersOverridesAndMerges(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "envs/prod/overrides/service/test/kube/01-deploy.yaml", testDeployment)
	mustWriteFile(t, fs, "envs/prod/merges/service/test/kube/01-deploy.yaml", "spec:\n  replicas: 3\n")

	c := &Component{
		Path:        "service/test",
		Name:        "service-test",
		KubeConfigs: map[string]string{"01-deploy.yaml": "service/test/kube/01-deploy.yaml"},
		KubeMerges:  map[string]string{},
	}

	if err := c.PatchFromEnv(fs, "prod"); err != nil {
		t.Fatalf("PatchFromEnv: %v", err)
	}
	if got := c.KubeConfigs["01-deploy.yaml"]; got != "envs/prod/overrides/service/test/kube/01-deploy.yaml" {
		t.Errorf("KubeConfigs[01-deploy.yaml] = %q, want override path", got)
	}
	if got := c.KubeMerges["01-deploy.yaml"]; got != "envs/prod/merges/service/test/kube/01-deploy.yaml" {
		t.Errorf("KubeMerges[01-deploy.yaml] = %q, want merge path", got)
	}
}

func TestPatchFromEnvAddsNewOverrideNotInBase(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "envs/prod/overrides/service/test/kube/99-extra.yaml", "kind: ConfigMap\n")

	c := &Component{
		Path:        "service/test",
		KubeConfigs: map[string]string{},
		KubeMerges:  map[string]string{},
	}
	if err := c.PatchFromEnv(fs, "prod"); err != nil {
		t.Fatalf("PatchFromEnv: %v", err)
	}
	if len(c.KubeConfigNames) != 1 || c.KubeConfigNames[0] != "99-extra.yaml" {
		t.Errorf("KubeConfigNames = %v", c.KubeConfigNames)
	}
}

// TestReleaseDryRunNeverInvokesRunner exercises the full Release pipeline
// (prepareConfigs -> doRelease -> restartResources -> postRelease) with
// dryRun set, which every kubectl-invoking step short-circuits before
// touching the runner. This lets the test use a nil runner and assert only
// on the filesystem side effects of prepareConfigs.
func TestReleaseDryRunNeverInvokesRunner(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/01-deploy.yaml", testDeployment)

	c, err := Load(fs, "service/test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.Namespace = "my-namespace"

	if err := c.Release(context.Background(), nil, fs, "/tmp/release-1", true, true, ""); err != nil {
		t.Fatalf("Release: %v", err)
	}

	dstPath := c.KubeConfigs["01-deploy.yaml"]
	data, err := afero.ReadFile(fs, dstPath)
	if err != nil {
		t.Fatalf("reading materialized manifest: %v", err)
	}
	docs, err := yamldoc.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	root := yamldoc.UnwrapDocument(docs[0])
	ns, _ := yamldoc.GetString(root, "metadata", "namespace")
	if ns != "my-namespace" {
		t.Errorf("materialized namespace = %q, want my-namespace", ns)
	}
}

func TestReleaseAppliesMergesDuringPrepare(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWriteFile(t, fs, "service/test/kube/01-deploy.yaml", testDeployment)
	mustWriteFile(t, fs, "envs/prod/merges/service/test/kube/01-deploy.yaml", "spec:\n  replicas: 9\n")

	c, err := Load(fs, "service/test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.KubeMerges["01-deploy.yaml"] = "envs/prod/merges/service/test/kube/01-deploy.yaml"

	if err := c.Release(context.Background(), nil, fs, "/tmp/release-2", true, true, ""); err != nil {
		t.Fatalf("Release: %v", err)
	}

	data, err := afero.ReadFile(fs, c.KubeConfigs["01-deploy.yaml"])
	if err != nil {
		t.Fatalf("reading materialized manifest: %v", err)
	}
	docs, err := yamldoc.LoadBytes(data)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	root := yamldoc.UnwrapDocument(docs[0])
	replicas, _ := yamldoc.GetString(root, "spec", "replicas")
	if replicas != "9" {
		t.Errorf("spec.replicas = %q, want 9", replicas)
	}
}
