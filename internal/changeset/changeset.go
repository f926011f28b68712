// Package changeset builds the normalized change-set for a release: the
// previous published tag, the commit range between the two tags, and the pull
// requests those commits reference.
package changeset

import (
	"context"

	"github.com/shiplog/shiplog/internal/github"
)

// releasePageSize is how many recent releases are inspected when resolving
// the previous tag.
const releasePageSize = 10

// maxPullRequests caps PR fan-out per change-set. The cap is a hard
// truncation, not pagination.
const maxPullRequests = 20

// Commit is one commit in the comparison range, oldest first.
type Commit struct {
	SHA        string `json:"sha"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
}

// PullRequest is a pull request referenced by a commit in the range.
type PullRequest struct {
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Labels      []string `json:"labels"`
	AuthorLogin string   `json:"author_login"`
}

// ChangeSet is the normalized delta between a release's tag and the previous
// published tag. It is owned by a single orchestration run and never persisted
// directly.
type ChangeSet struct {
	PreviousTag  string        `json:"previous_tag,omitempty"`
	ReleaseBody  string        `json:"release_body,omitempty"`
	ReleaseURL   string        `json:"release_url,omitempty"`
	Commits      []Commit      `json:"commits"`
	PullRequests []PullRequest `json:"pull_requests"`
}

// IsEmpty reports whether the change-set carries no commits. Downstream
// generation still runs on an empty set and produces "no significant changes"
// output rather than failing.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Commits) == 0
}

// ReleaseAPI is the slice of the source-repository API the aggregator needs.
type ReleaseAPI interface {
	GetReleaseByTag(ctx context.Context, token, owner, repo, tag string) (*github.Release, error)
	ListReleases(ctx context.Context, token, owner, repo string, perPage int) ([]github.Release, error)
	CompareCommits(ctx context.Context, token, owner, repo, base, head string) (*github.Comparison, error)
	GetPullRequest(ctx context.Context, token, owner, repo string, number int) (*github.PullRequest, error)
}
