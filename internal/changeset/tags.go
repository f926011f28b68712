package changeset

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/shiplog/shiplog/internal/github"
)

// SortReleasesNewestFirst orders releases newest first for backfill. The
// releases API pages by creation time, which disagrees with version order
// when tags are published out of sequence, so semver-parseable tags are
// compared as versions. Non-semver tags keep their API position relative to
// each other and sort after all semver tags.
func SortReleasesNewestFirst(releases []github.Release) []github.Release {
	sorted := make([]github.Release, len(releases))
	copy(sorted, releases)

	version := func(r github.Release) *semver.Version {
		v, err := semver.NewVersion(r.TagName)
		if err != nil {
			return nil
		}
		return v
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := version(sorted[i]), version(sorted[j])
		switch {
		case vi != nil && vj != nil:
			return vi.GreaterThan(vj)
		case vi != nil:
			return true
		default:
			return false
		}
	})

	return sorted
}
