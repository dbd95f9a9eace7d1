package release

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/nimbleci/shipctl/internal/logging"
	"github.com/nimbleci/shipctl/internal/process"
)

// MaxTagsPerRepository is the number of most-recent tags kept per ACR
// repository; everything older is deleted.
const MaxTagsPerRepository = 50

// acrTagPattern matches the <branch>-<hash>-<YYYYMMDD>-<HHMMSS> tag shape
// this tool's CI produces, so tags can be sorted chronologically instead
// of lexically (branch name sorts before the date otherwise).
var acrTagPattern = regexp.MustCompile(`^([^-]+)-([A-Za-z0-9]{7})-([0-9]+)-([0-9]+)$`)

// CleanupACRRegistry deletes all but the MaxTagsPerRepository most recent
// tags from every repository in an Azure Container Registry.
func CleanupACRRegistry(ctx context.Context, runner *process.Runner, registry string) error {
	logging.BigLabel(fmt.Sprintf("Cleaning up ACR registry %s", registry))

	res, err := runner.Run(ctx, process.Options{
		Argv:  []string{"az", "acr", "repository", "list", "--name", registry},
		Check: true,
	})
	if err != nil {
		return fmt.Errorf("listing repositories in %s: %w", registry, err)
	}

	var repositories []string
	if err := json.Unmarshal(res.Stdout, &repositories); err != nil {
		return fmt.Errorf("parsing repository list: %w", err)
	}

	for _, repository := range repositories {
		if err := CleanupACRRepository(ctx, runner, registry, repository); err != nil {
			return err
		}
	}
	return nil
}

// CleanupACRRepository deletes all but the MaxTagsPerRepository most
// recent tags from a single repository.
func CleanupACRRepository(ctx context.Context, runner *process.Runner, registry, repository string) error {
	logging.Label(fmt.Sprintf("Cleaning up ACR %s/%s repository", registry, repository))

	res, err := runner.Run(ctx, process.Options{
		Argv:  []string{"az", "acr", "repository", "show-tags", "--name", registry, "--repository", repository},
		Check: true,
	})
	if err != nil {
		return fmt.Errorf("listing tags for %s/%s: %w", registry, repository, err)
	}

	var tags []string
	if err := json.Unmarshal(res.Stdout, &tags); err != nil {
		return fmt.Errorf("parsing tag list: %w", err)
	}

	sort.Slice(tags, func(i, j int) bool {
		return acrSortKey(tags[i]) < acrSortKey(tags[j])
	})

	if len(tags) <= MaxTagsPerRepository {
		return nil
	}

	for _, tag := range tags[:len(tags)-MaxTagsPerRepository] {
		log.Infof("Deleting old tag %s", tag)
		if _, err := runner.Run(ctx, process.Options{
			Argv: []string{
				"az", "acr", "repository", "delete", "--yes",
				"--name", registry,
				"--image", repository + ":" + tag,
			},
			Check: true,
		}); err != nil {
			return fmt.Errorf("deleting %s:%s: %w", repository, tag, err)
		}
	}
	return nil
}

// acrSortKey rewrites <branch>-<hash>-<YYYYMMDD>-<HHMMSS> into
// <YYYYMMDD>-<HHMMSS>-<branch>-<hash> so a lexical sort is chronological;
// tags that don't match the pattern sort by their own text unchanged.
func acrSortKey(tag string) string {
	if !acrTagPattern.MatchString(tag) {
		return tag
	}
	return acrTagPattern.ReplaceAllString(tag, "$3-$4-$1-$2")
}
