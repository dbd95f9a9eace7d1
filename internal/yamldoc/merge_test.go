package yamldoc

import (
	"reflect"
	"testing"
)

const mergeTestSrc = `
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-constants
data:
  UNCHANGED_SETTING: "value"
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-settings
data:
  MY_SETTING: "foo"
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: big-deployment
spec:
  replicas: 2
  selector:
    matchLabels:
      app: big-deployment
  template:
    metadata:
      labels:
        app: big-deployment
    spec:
      containers:
        - name: first-container
          imagePullPolicy: IfNotPresent
          image: first-container:latest
        - name: second-container
          imagePullPolicy: IfNotPresent
          image: second-container:latest
      volumes:
        - name: some-data
          persistentVolumeClaim:
            claimName: some-data
`

const mergeTestOverrides = `
---
---
data:
  MY_SETTING: "bar"
---
spec:
  template:
    spec:
      containers:
        -
        - volumeMounts:
            - mountPath: /var/run/docker.sock
              name: docker-volume
      volumes:
        - persistentVolumeClaim: ~
        - name: docker-volume
          hostPath:
            path: /var/run/docker.sock
`

const mergeTestExpected = `
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-constants
data:
  UNCHANGED_SETTING: "value"
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-settings
data:
  MY_SETTING: "bar"
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: big-deployment
spec:
  replicas: 2
  selector:
    matchLabels:
      app: big-deployment
  template:
    metadata:
      labels:
        app: big-deployment
    spec:
      containers:
        - name: first-container
          imagePullPolicy: IfNotPresent
          image: first-container:latest
        - name: second-container
          imagePullPolicy: IfNotPresent
          image: second-container:latest
          volumeMounts:
            - mountPath: /var/run/docker.sock
              name: docker-volume
      volumes:
        - name: some-data
        - name: docker-volume
          hostPath:
            path: /var/run/docker.sock
`

const readmeMergeSrc = `
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-settings
data:
  MY_SETTING: "foo"
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: my-deployment
spec:
  selector:
    matchLabels:
      app: my-deployment
  template:
    metadata:
      labels:
        app: my-deployment
    spec:
      containers:
        - name: my-container
          imagePullPolicy: IfNotPresent
          image: my-container:latest
          env:
            - name: ANOTHER_SETTING
              value: some-value
          volumeMounts:
            - mountPath: /var/run/docker.sock
              name: docker-volume
`

const readmeMergeOverride = `
data:
  MY_SETTING: "bar"
---
spec:
  template:
    spec:
      containers:
        - env:
            - name: ANOTHER_SETTING
              value: another-value
          volumeMounts: ~
          livenessProbe:
            exec:
              command:
               - cat
               - /tmp/healthy
            initialDelaySeconds: 5
            periodSeconds: 5
`

const readmeMergeExpected = `
apiVersion: v1
kind: ConfigMap
metadata:
  name: myproj-settings
data:
  MY_SETTING: "bar"
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: my-deployment
spec:
  selector:
    matchLabels:
      app: my-deployment
  template:
    metadata:
      labels:
        app: my-deployment
    spec:
      containers:
        - name: my-container
          imagePullPolicy: IfNotPresent
          image: my-container:latest
          env:
            - name: ANOTHER_SETTING
              value: another-value
          livenessProbe:
            exec:
              command:
               - cat
               - /tmp/healthy
            initialDelaySeconds: 5
            periodSeconds: 5
`

func assertMergeMatches(t *testing.T, src, overrides, expected string) {
	t.Helper()

	srcDocs, err := LoadBytes([]byte(src))
	if err != nil {
		t.Fatalf("loading src: %v", err)
	}
	overrideDocs, err := LoadBytes([]byte(overrides))
	if err != nil {
		t.Fatalf("loading overrides: %v", err)
	}
	expectedDocs, err := LoadBytes([]byte(expected))
	if err != nil {
		t.Fatalf("loading expected: %v", err)
	}

	merged, err := Merge(srcDocs, overrideDocs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(merged) != len(expectedDocs) {
		t.Fatalf("got %d documents, want %d", len(merged), len(expectedDocs))
	}

	for i := range merged {
		var got, want any
		if err := merged[i].Decode(&got); err != nil {
			t.Fatalf("doc %d: decoding merged result: %v", i, err)
		}
		if err := expectedDocs[i].Decode(&want); err != nil {
			t.Fatalf("doc %d: decoding expected: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("doc %d mismatch\n got:  %#v\n want: %#v", i, got, want)
		}
	}
}

func TestMergeDocs(t *testing.T) {
	assertMergeMatches(t, mergeTestSrc, mergeTestOverrides, mergeTestExpected)
}

func TestMergeDocsReadmeExample(t *testing.T) {
	assertMergeMatches(t, readmeMergeSrc, readmeMergeOverride, readmeMergeExpected)
}

func TestMergeIsIdentityWithNoOverrides(t *testing.T) {
	srcDocs, err := LoadBytes([]byte(mergeTestSrc))
	if err != nil {
		t.Fatalf("loading src: %v", err)
	}
	merged, err := Merge(srcDocs, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for i := range merged {
		var got, want any
		if err := merged[i].Decode(&got); err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		if err := srcDocs[i].Decode(&want); err != nil {
			t.Fatalf("doc %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("doc %d: merge with no overrides changed the document", i)
		}
	}
}

func TestMergeDeletesKey(t *testing.T) {
	src := "a: 1\nb: 2\n"
	overrides := "b: ~\n"
	srcDocs, _ := LoadBytes([]byte(src))
	overrideDocs, _ := LoadBytes([]byte(overrides))
	merged, err := Merge(srcDocs, overrideDocs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	var got map[string]any
	if err := merged[0].Decode(&got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["b"]; ok {
		t.Errorf("expected key b to be deleted, got %v", got)
	}
	if got["a"] != 1 {
		t.Errorf("expected key a to survive unchanged, got %v", got)
	}
}

func TestMergeTypedScalarReplacementIgnoresOverrideQuoting(t *testing.T) {
	src := "replicas: 2\n"
	overrides := `replicas: "3"` + "\n"
	srcDocs, _ := LoadBytes([]byte(src))
	overrideDocs, _ := LoadBytes([]byte(overrides))
	merged, err := Merge(srcDocs, overrideDocs)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	var got map[string]any
	if err := merged[0].Decode(&got); err != nil {
		t.Fatal(err)
	}
	replicas, ok := got["replicas"].(int)
	if !ok {
		t.Fatalf("expected replicas to decode as int, got %T (%v)", got["replicas"], got["replicas"])
	}
	if replicas != 3 {
		t.Errorf("replicas = %d, want 3", replicas)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	srcDocs, _ := LoadBytes([]byte(mergeTestSrc))
	overrideDocs, _ := LoadBytes([]byte(mergeTestOverrides))

	once, err := Merge(srcDocs, overrideDocs)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}

	overrideDocs2, _ := LoadBytes([]byte(mergeTestOverrides))
	twice, err := Merge(once, overrideDocs2)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}

	for i := range once {
		var a, b any
		if err := once[i].Decode(&a); err != nil {
			t.Fatal(err)
		}
		if err := twice[i].Decode(&b); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("doc %d: merge is not idempotent under its own overrides\n once:  %#v\n twice: %#v", i, a, b)
		}
	}
}
