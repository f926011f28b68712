package orchestrator

import (
	"context"

	"github.com/shiplog/shiplog/internal/changeset"
	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/store"
)

// TagError pairs a tag with the error that stopped its import.
type TagError struct {
	Tag string
	Err error
}

// BackfillResult reports a backfill run. Imported and Skipped are in the
// order the tags were visited, newest first.
type BackfillResult struct {
	Imported []string
	Skipped  []string
	Errors   []TagError
}

// Backfill imports up to count recent published releases for a connected
// repository. Tags that already have a release record are skipped, so the
// operation can be re-run safely. Each tag is processed independently and a
// failing tag is recorded in the result without stopping the rest.
//
// Backfilled releases do not notify configured channels; only the hosted
// outcomes are recorded.
func (o *Orchestrator) Backfill(ctx context.Context, repoFullName string, count int) (*BackfillResult, error) {
	if count <= 0 {
		return nil, errors.NewValidationError("backfill count must be positive").
			WithField("count").WithValue(count)
	}

	repo, err := o.store.GetRepoByFullName(ctx, repoFullName)
	if err != nil {
		return nil, err
	}

	token, err := o.vault.Decrypt(repo.EncryptedToken)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt repository credential")
	}

	releases, err := o.source.ListReleases(ctx, token, repo.Owner(), repo.Name(), count)
	if err != nil {
		return nil, err
	}
	releases = changeset.SortReleasesNewestFirst(releases)

	existing, err := o.store.ListReleaseTags(ctx, repo.ID)
	if err != nil {
		return nil, err
	}

	log := o.logger.WithRepo(repoFullName)
	result := &BackfillResult{}

	for _, upstream := range releases {
		if upstream.Draft || upstream.Prerelease {
			continue
		}
		tag := upstream.TagName

		if existing[tag] {
			log.Debug("backfill skipping recorded tag", "tag", tag)
			result.Skipped = append(result.Skipped, tag)
			continue
		}

		release := &store.Release{
			RepoID:     repo.ID,
			TagName:    tag,
			Status:     store.StatusReceived,
			ReleaseURL: upstream.HTMLURL,
		}
		if err := o.store.CreateRelease(ctx, release); err != nil {
			if errors.Is(err, errors.ErrDuplicateRelease) {
				result.Skipped = append(result.Skipped, tag)
				continue
			}
			result.Errors = append(result.Errors, TagError{Tag: tag, Err: err})
			continue
		}

		if _, _, err := o.process(ctx, repo, release, false); err != nil {
			result.Errors = append(result.Errors, TagError{Tag: tag, Err: err})
			continue
		}
		result.Imported = append(result.Imported, tag)
	}

	log.Info("backfill complete",
		"requested", count,
		"imported", len(result.Imported),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors))

	return result, nil
}
