package orchestrator

import (
	"context"

	"github.com/shiplog/shiplog/internal/errors"
	"github.com/shiplog/shiplog/internal/notes"
	"github.com/shiplog/shiplog/internal/store"
)

// RegenerateResult reports which audiences were rewritten and which were
// preserved because of manual edits.
type RegenerateResult struct {
	ReleaseID  string
	Rewritten  []string
	Preserved  []string
	TokensUsed int
	Model      string
}

// Regenerate re-runs aggregation and generation for an existing release and
// rewrites its persisted documents. Audiences a human has edited are
// preserved unless force is set; force rewrites everything and clears the
// edit flags. When every audience is edited and force is not set there is
// nothing to rewrite and ErrEditedNotes is returned before any model call.
//
// Regeneration does not re-deliver: the release returns to ready and the
// hosted surface serves the new text. It is available from the ready,
// published, and failed states.
func (o *Orchestrator) Regenerate(ctx context.Context, releaseID string, force bool) (*RegenerateResult, error) {
	release, err := o.store.GetReleaseByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	repo, err := o.store.GetRepoByID(ctx, release.RepoID)
	if err != nil {
		return nil, err
	}

	existing, err := o.store.GetNotes(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !force && existing != nil &&
		existing.CustomerEdited && existing.DeveloperEdited && existing.StakeholderEdited {
		return nil, errors.ErrEditedNotes
	}

	if err := o.transition(ctx, release, store.StatusProcessing, ""); err != nil {
		return nil, err
	}

	token, err := o.vault.Decrypt(repo.EncryptedToken)
	if err != nil {
		return nil, o.fail(ctx, release, errors.Wrap(err, "decrypt repository credential"))
	}

	cs, err := o.aggregator.Aggregate(ctx, repo.Owner(), repo.Name(), release.TagName, token)
	if err != nil {
		return nil, o.fail(ctx, release, err)
	}

	docs, err := o.generator.Generate(ctx, release.TagName, cs, styleFor(repo))
	if err != nil {
		return nil, o.fail(ctx, release, err)
	}

	row := &store.ReleaseNotes{
		ReleaseID:       releaseID,
		CustomerText:    docs.CustomerText,
		DeveloperText:   docs.DeveloperText,
		StakeholderText: docs.StakeholderText,
		TokensUsed:      docs.TokensUsed,
		Model:           docs.Model,
	}

	result := &RegenerateResult{
		ReleaseID:  releaseID,
		TokensUsed: docs.TokensUsed,
		Model:      docs.Model,
	}

	for _, audience := range notes.Audiences() {
		if !force && existing != nil && edited(existing, audience) {
			preserve(row, existing, audience)
			result.Preserved = append(result.Preserved, string(audience))
			continue
		}
		result.Rewritten = append(result.Rewritten, string(audience))
	}

	if err := o.store.UpsertNotes(ctx, row); err != nil {
		return nil, err
	}
	if err := o.transition(ctx, release, store.StatusReady, ""); err != nil {
		return nil, err
	}

	o.logger.WithRepo(repo.FullName).WithRelease(releaseID).Info("notes regenerated",
		"tag", release.TagName,
		"rewritten", len(result.Rewritten),
		"preserved", len(result.Preserved),
		"force", force)

	return result, nil
}

func edited(n *store.ReleaseNotes, audience notes.Audience) bool {
	switch audience {
	case notes.AudienceCustomer:
		return n.CustomerEdited
	case notes.AudienceDeveloper:
		return n.DeveloperEdited
	case notes.AudienceStakeholder:
		return n.StakeholderEdited
	}
	return false
}

// preserve copies the edited text and its flag from old into row for one
// audience.
func preserve(row, old *store.ReleaseNotes, audience notes.Audience) {
	switch audience {
	case notes.AudienceCustomer:
		row.CustomerText = old.CustomerText
		row.CustomerEdited = true
	case notes.AudienceDeveloper:
		row.DeveloperText = old.DeveloperText
		row.DeveloperEdited = true
	case notes.AudienceStakeholder:
		row.StakeholderText = old.StakeholderText
		row.StakeholderEdited = true
	}
}
