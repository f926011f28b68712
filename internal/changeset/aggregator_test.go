package changeset

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shiplog/shiplog/internal/github"
)

// fakeAPI is an in-memory ReleaseAPI for aggregator tests.
type fakeAPI struct {
	releases   []github.Release
	comparison *github.Comparison
	prs        map[int]*github.PullRequest
	prErrs     map[int]error

	compareBase string
	compareHead string
	prFetches   []int
}

func (f *fakeAPI) GetReleaseByTag(_ context.Context, _, _, _, tag string) (*github.Release, error) {
	for _, r := range f.releases {
		if r.TagName == tag {
			return &r, nil
		}
	}
	return nil, errors.New("release not found")
}

func (f *fakeAPI) ListReleases(_ context.Context, _, _, _ string, perPage int) ([]github.Release, error) {
	if len(f.releases) > perPage {
		return f.releases[:perPage], nil
	}
	return f.releases, nil
}

func (f *fakeAPI) CompareCommits(_ context.Context, _, _, _, base, head string) (*github.Comparison, error) {
	f.compareBase, f.compareHead = base, head
	return f.comparison, nil
}

func (f *fakeAPI) GetPullRequest(_ context.Context, _, _, _ string, number int) (*github.PullRequest, error) {
	f.prFetches = append(f.prFetches, number)
	if err := f.prErrs[number]; err != nil {
		return nil, err
	}
	if pr, ok := f.prs[number]; ok {
		return pr, nil
	}
	return nil, errors.New("pr not found")
}

func releasePage(tags ...string) []github.Release {
	releases := make([]github.Release, 0, len(tags))
	for _, tag := range tags {
		releases = append(releases, github.Release{TagName: tag, HTMLURL: "https://example.com/" + tag})
	}
	return releases
}

func commitEntry(sha, message, login, rawName string) github.Commit {
	var c github.Commit
	c.SHA = sha
	c.Commit.Message = message
	c.Commit.Author.Name = rawName
	if login != "" {
		c.Author = &struct {
			Login string `json:"login"`
		}{Login: login}
	}
	return c
}

func prEntry(number int, title, login string, labels ...string) *github.PullRequest {
	pr := &github.PullRequest{Number: number, Title: title}
	pr.User = &struct {
		Login string `json:"login"`
	}{Login: login}
	for _, l := range labels {
		pr.Labels = append(pr.Labels, struct {
			Name string `json:"name"`
		}{Name: l})
	}
	return pr
}

func TestAggregateResolvesPreviousTag(t *testing.T) {
	api := &fakeAPI{
		releases: releasePage("v1.2.0", "v1.1.0", "v1.0.0"),
		comparison: &github.Comparison{Commits: []github.Commit{
			commitEntry("a1", "fix: timeout handling (#42)", "octo", "Octo Cat"),
			commitEntry("b2", "chore: bump deps", "", "Dep Bot"),
			commitEntry("c3", "Merge pull request #42 from acme/fix", "octo", "Octo Cat"),
		}},
		prs: map[int]*github.PullRequest{
			42: prEntry(42, "Fix timeout handling", "octo", "bug"),
		},
	}

	agg := NewAggregator(api, nil)
	cs, err := agg.Aggregate(context.Background(), "acme", "widgets", "v1.2.0", "tok")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if cs.PreviousTag != "v1.1.0" {
		t.Errorf("PreviousTag = %q, want v1.1.0", cs.PreviousTag)
	}
	if api.compareBase != "v1.1.0" || api.compareHead != "v1.2.0" {
		t.Errorf("compared %s...%s, want v1.1.0...v1.2.0", api.compareBase, api.compareHead)
	}
	if len(cs.Commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(cs.Commits))
	}
	if cs.Commits[0].AuthorName != "octo" {
		t.Errorf("commit author = %q, want linked login preferred", cs.Commits[0].AuthorName)
	}
	if cs.Commits[1].AuthorName != "Dep Bot" {
		t.Errorf("commit author = %q, want raw name fallback", cs.Commits[1].AuthorName)
	}

	// #42 is referenced by both a squash suffix and a merge commit; it must
	// appear exactly once.
	if len(cs.PullRequests) != 1 || cs.PullRequests[0].Number != 42 {
		t.Fatalf("PullRequests = %+v, want exactly PR #42", cs.PullRequests)
	}
	if cs.PullRequests[0].AuthorLogin != "octo" {
		t.Errorf("PR author = %q, want octo", cs.PullRequests[0].AuthorLogin)
	}
	if len(api.prFetches) != 1 {
		t.Errorf("PR fetched %d times, want 1", len(api.prFetches))
	}
}

func TestAggregateOldestTagHasNoDiff(t *testing.T) {
	api := &fakeAPI{releases: releasePage("v1.1.0", "v1.0.0")}

	agg := NewAggregator(api, nil)
	cs, err := agg.Aggregate(context.Background(), "acme", "widgets", "v1.0.0", "tok")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}

	if cs.PreviousTag != "" {
		t.Errorf("PreviousTag = %q, want empty for oldest tag", cs.PreviousTag)
	}
	if !cs.IsEmpty() {
		t.Errorf("change-set should be empty, got %d commits", len(cs.Commits))
	}
	if api.compareBase != "" {
		t.Error("CompareCommits should not be called without a previous tag")
	}
}

func TestAggregateMissingReleaseFails(t *testing.T) {
	api := &fakeAPI{releases: releasePage("v1.0.0")}

	agg := NewAggregator(api, nil)
	if _, err := agg.Aggregate(context.Background(), "acme", "widgets", "v9.9.9", "tok"); err == nil {
		t.Fatal("Aggregate should fail when the tag has no release")
	}
}

func TestAggregateSkipsFailedPRFetches(t *testing.T) {
	api := &fakeAPI{
		releases: releasePage("v2.0.0", "v1.0.0"),
		comparison: &github.Comparison{Commits: []github.Commit{
			commitEntry("a1", "feat: one (#1)", "a", "A"),
			commitEntry("b2", "feat: two (#2)", "b", "B"),
		}},
		prs: map[int]*github.PullRequest{
			2: prEntry(2, "Two", "b"),
		},
		prErrs: map[int]error{1: errors.New("boom")},
	}

	agg := NewAggregator(api, nil)
	cs, err := agg.Aggregate(context.Background(), "acme", "widgets", "v2.0.0", "tok")
	if err != nil {
		t.Fatalf("a single PR fetch failure must not fail aggregation: %v", err)
	}
	if len(cs.PullRequests) != 1 || cs.PullRequests[0].Number != 2 {
		t.Errorf("PullRequests = %+v, want only PR #2", cs.PullRequests)
	}
}

func TestAggregateCapsPRFanOut(t *testing.T) {
	commits := make([]github.Commit, 0, 30)
	prs := make(map[int]*github.PullRequest, 30)
	for i := 1; i <= 30; i++ {
		commits = append(commits, commitEntry(
			fmt.Sprintf("sha%d", i), fmt.Sprintf("feat: change %d (#%d)", i, i), "dev", "Dev"))
		prs[i] = prEntry(i, fmt.Sprintf("Change %d", i), "dev")
	}

	api := &fakeAPI{
		releases:   releasePage("v2.0.0", "v1.0.0"),
		comparison: &github.Comparison{Commits: commits},
		prs:        prs,
	}

	agg := NewAggregator(api, nil)
	cs, err := agg.Aggregate(context.Background(), "acme", "widgets", "v2.0.0", "tok")
	if err != nil {
		t.Fatalf("Aggregate returned error: %v", err)
	}
	if len(cs.PullRequests) != maxPullRequests {
		t.Errorf("got %d PRs, want hard cap of %d", len(cs.PullRequests), maxPullRequests)
	}
	if len(api.prFetches) != maxPullRequests {
		t.Errorf("issued %d PR fetches, want %d", len(api.prFetches), maxPullRequests)
	}
}

func TestExtractPRNumbers(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []int
	}{
		{"squash suffix", "feat: add widget (#7)", []int{7}},
		{"merge commit", "Merge pull request #12 from acme/branch", []int{12}},
		{"merge commit lowercase", "merge pull request #3 from acme/branch", []int{3}},
		{"suffix not at end", "feat: add widget (#7) and more", nil},
		{"suffix on subject line only", "feat: add widget (#7)\n\nlong body text", []int{7}},
		{"no reference", "chore: tidy", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractPRNumbers([]Commit{{Message: tt.message}})
			if len(got) != len(tt.want) {
				t.Fatalf("extractPRNumbers(%q) = %v, want %v", tt.message, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("extractPRNumbers(%q) = %v, want %v", tt.message, got, tt.want)
				}
			}
		})
	}
}

func TestSortReleasesNewestFirst(t *testing.T) {
	releases := releasePage("v1.9.0", "v1.10.0", "nightly-build", "v2.0.0-rc.1")

	sorted := SortReleasesNewestFirst(releases)

	want := []string{"v2.0.0-rc.1", "v1.10.0", "v1.9.0", "nightly-build"}
	for i, tag := range want {
		if sorted[i].TagName != tag {
			t.Fatalf("sorted[%d] = %q, want %q (full order %v)", i, sorted[i].TagName, tag, sorted)
		}
	}
}
