package changeset

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/shiplog/shiplog/internal/github"
	"github.com/shiplog/shiplog/internal/logging"
)

// Aggregator resolves change-sets against the source-repository API.
type Aggregator struct {
	api    ReleaseAPI
	logger *logging.Logger
}

// NewAggregator creates an Aggregator over the given API client.
func NewAggregator(api ReleaseAPI, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Aggregator{api: api, logger: logger}
}

// Aggregate builds the change-set for tag in owner/repo.
//
// The previous tag is resolved from the newest releasePageSize releases: the
// entry immediately older than tag. When tag is the oldest entry on the page
// (or absent from it), there is no previous tag and the commit list stays
// empty; that is a valid change-set, not an error. A missing release for tag
// itself is an error.
func (a *Aggregator) Aggregate(ctx context.Context, owner, repo, tag, token string) (*ChangeSet, error) {
	release, err := a.api.GetReleaseByTag(ctx, token, owner, repo, tag)
	if err != nil {
		return nil, err
	}

	cs := &ChangeSet{
		ReleaseBody:  release.Body,
		ReleaseURL:   release.HTMLURL,
		Commits:      []Commit{},
		PullRequests: []PullRequest{},
	}

	previousTag, err := a.resolvePreviousTag(ctx, owner, repo, tag, token)
	if err != nil {
		return nil, err
	}
	if previousTag == "" {
		a.logger.Debug("no previous tag, skipping diff", "tag", tag)
		return cs, nil
	}
	cs.PreviousTag = previousTag

	cmp, err := a.api.CompareCommits(ctx, token, owner, repo, previousTag, tag)
	if err != nil {
		return nil, err
	}

	for _, c := range cmp.Commits {
		cs.Commits = append(cs.Commits, Commit{
			SHA:        c.SHA,
			Message:    c.Commit.Message,
			AuthorName: commitAuthor(c),
		})
	}

	cs.PullRequests = a.fetchPullRequests(ctx, owner, repo, token, cs.Commits)

	a.logger.Info("change-set aggregated",
		"tag", tag,
		"previous_tag", previousTag,
		"commits", len(cs.Commits),
		"pull_requests", len(cs.PullRequests))

	return cs, nil
}

// resolvePreviousTag returns the tag immediately older than tag on the
// newest-first release page, or "" when there is none.
func (a *Aggregator) resolvePreviousTag(ctx context.Context, owner, repo, tag, token string) (string, error) {
	releases, err := a.api.ListReleases(ctx, token, owner, repo, releasePageSize)
	if err != nil {
		return "", err
	}

	for i, r := range releases {
		if r.TagName == tag {
			if i+1 < len(releases) {
				return releases[i+1].TagName, nil
			}
			return "", nil
		}
	}
	return "", nil
}

// commitAuthor prefers the linked account login, falling back to the raw
// commit author name.
func commitAuthor(c github.Commit) string {
	if c.Author != nil && c.Author.Login != "" {
		return c.Author.Login
	}
	return c.Commit.Author.Name
}

// mergeCommitPattern matches explicit merge-commit references.
var mergeCommitPattern = regexp.MustCompile(`(?i)merge pull request #(\d+)`)

// squashMergePattern matches the trailing "(#N)" a squash merge leaves at the
// end of the commit subject line.
var squashMergePattern = regexp.MustCompile(`\(#(\d+)\)$`)

// extractPRNumbers pulls referenced pull-request numbers out of commit
// messages, deduplicated in first-seen order.
func extractPRNumbers(commits []Commit) []int {
	seen := make(map[int]bool)
	var numbers []int

	add := func(match []string) {
		if len(match) < 2 {
			return
		}
		n, err := strconv.Atoi(match[1])
		if err != nil || seen[n] {
			return
		}
		seen[n] = true
		numbers = append(numbers, n)
	}

	for _, c := range commits {
		add(mergeCommitPattern.FindStringSubmatch(c.Message))

		subject, _, _ := strings.Cut(c.Message, "\n")
		add(squashMergePattern.FindStringSubmatch(strings.TrimSpace(subject)))
	}

	return numbers
}

// fetchPullRequests resolves up to maxPullRequests referenced PRs. Individual
// fetch failures are logged and skipped; PR context is best-effort enrichment
// and must not fail the run.
func (a *Aggregator) fetchPullRequests(ctx context.Context, owner, repo, token string, commits []Commit) []PullRequest {
	numbers := extractPRNumbers(commits)
	if len(numbers) > maxPullRequests {
		numbers = numbers[:maxPullRequests]
	}

	prs := make([]PullRequest, 0, len(numbers))
	for _, n := range numbers {
		pr, err := a.api.GetPullRequest(ctx, token, owner, repo, n)
		if err != nil {
			a.logger.Warn("skipping pull request fetch", "number", n, "error", err)
			continue
		}

		labels := make([]string, 0, len(pr.Labels))
		for _, l := range pr.Labels {
			labels = append(labels, l.Name)
		}

		login := ""
		if pr.User != nil {
			login = pr.User.Login
		}

		prs = append(prs, PullRequest{
			Number:      pr.Number,
			Title:       pr.Title,
			Body:        pr.Body,
			Labels:      labels,
			AuthorLogin: login,
		})
	}
	return prs
}
