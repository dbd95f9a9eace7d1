package release

import "errors"

// ErrNoReleaseIDAvailable is returned when GenerateReleaseID exhausts its
// retry budget without finding an id that doesn't already have a temp
// directory, which in practice only happens if something else is
// squatting on most of the 36^5 id space.
var ErrNoReleaseIDAvailable = errors.New("could not generate a unique release id")
