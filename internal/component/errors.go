package component

import "errors"

// ErrNoManifests is returned by Validate when a component has no base
// manifests under kube/.
var ErrNoManifests = errors.New("no manifests found")

// ErrValidation is returned when the external validator rejects a
// manifest.
var ErrValidation = errors.New("manifest validation failed")

// ErrNoPodsForPostRelease is returned when post-release.sh exists but no
// running pod matches the component's expected image.
var ErrNoPodsForPostRelease = errors.New("no running pods with the expected image found")
