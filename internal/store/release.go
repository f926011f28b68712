package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/shiplog/shiplog/internal/errors"
)

// CreateRelease inserts a new release in its initial status. A concurrent or
// repeated insert for the same (repo, tag) violates the unique constraint and
// is returned as ErrDuplicateRelease so callers can treat it as idempotent
// success.
func (s *Store) CreateRelease(ctx context.Context, release *Release) error {
	release.ID = uuid.NewString()
	if release.Status == "" {
		release.Status = StatusReceived
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO releases (id, repo_id, tag_name, status, release_url, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		release.ID, release.RepoID, release.TagName, release.Status,
		release.ReleaseURL, release.Error)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDuplicateRelease
		}
		return errors.NewStoreError("insert release", err).WithTable("releases")
	}
	return nil
}

// GetReleaseByTag fetches a release by its natural key.
func (s *Store) GetReleaseByTag(ctx context.Context, repoID, tagName string) (*Release, error) {
	return s.scanRelease(s.db.QueryRowContext(ctx, `
		SELECT id, repo_id, tag_name, status, release_url, error, created_at, updated_at
		FROM releases WHERE repo_id = $1 AND tag_name = $2`, repoID, tagName))
}

// GetReleaseByID fetches a release by ID.
func (s *Store) GetReleaseByID(ctx context.Context, id string) (*Release, error) {
	return s.scanRelease(s.db.QueryRowContext(ctx, `
		SELECT id, repo_id, tag_name, status, release_url, error, created_at, updated_at
		FROM releases WHERE id = $1`, id))
}

func (s *Store) scanRelease(row *sql.Row) (*Release, error) {
	var r Release
	err := row.Scan(&r.ID, &r.RepoID, &r.TagName, &r.Status, &r.ReleaseURL,
		&r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrReleaseNotFound
	}
	if err != nil {
		return nil, errors.NewStoreError("scan release", err).WithTable("releases")
	}
	return &r, nil
}

// ListReleaseTags returns the set of tags already recorded for a repository.
// Backfill uses it to skip tags that are already imported.
func (s *Store) ListReleaseTags(ctx context.Context, repoID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_name FROM releases WHERE repo_id = $1`, repoID)
	if err != nil {
		return nil, errors.NewStoreError("list release tags", err).WithTable("releases")
	}
	defer rows.Close()

	tags := make(map[string]bool)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, errors.NewStoreError("scan release tag", err).WithTable("releases")
		}
		tags[tag] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate release tags", err).WithTable("releases")
	}
	return tags, nil
}

// UpdateReleaseStatus moves a release to status, recording errMsg for failed
// transitions and clearing it otherwise.
func (s *Store) UpdateReleaseStatus(ctx context.Context, releaseID string, status ReleaseStatus, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE releases SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`, releaseID, status, errMsg)
	if err != nil {
		return errors.NewStoreError("update release status", err).WithTable("releases")
	}
	return nil
}

// SetReleaseURL records the upstream release page URL once known.
func (s *Store) SetReleaseURL(ctx context.Context, releaseID, url string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE releases SET release_url = $2, updated_at = now()
		WHERE id = $1`, releaseID, url)
	if err != nil {
		return errors.NewStoreError("update release url", err).WithTable("releases")
	}
	return nil
}

// UpsertNotes writes the full generated document row for a release,
// replacing any previous row. Callers are responsible for carrying over
// edited audience texts before calling; the row is written as given.
func (s *Store) UpsertNotes(ctx context.Context, n *ReleaseNotes) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO release_notes (release_id, customer_text, developer_text,
			stakeholder_text, customer_edited, developer_edited, stakeholder_edited,
			tokens_used, model, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (release_id) DO UPDATE SET
			customer_text = EXCLUDED.customer_text,
			developer_text = EXCLUDED.developer_text,
			stakeholder_text = EXCLUDED.stakeholder_text,
			customer_edited = EXCLUDED.customer_edited,
			developer_edited = EXCLUDED.developer_edited,
			stakeholder_edited = EXCLUDED.stakeholder_edited,
			tokens_used = EXCLUDED.tokens_used,
			model = EXCLUDED.model,
			generated_at = now()`,
		n.ReleaseID, n.CustomerText, n.DeveloperText, n.StakeholderText,
		n.CustomerEdited, n.DeveloperEdited, n.StakeholderEdited,
		n.TokensUsed, n.Model)
	if err != nil {
		return errors.NewStoreError("upsert notes", err).WithTable("release_notes")
	}
	return nil
}

// GetNotes fetches the generated documents for a release, or nil when none
// have been persisted yet.
func (s *Store) GetNotes(ctx context.Context, releaseID string) (*ReleaseNotes, error) {
	var n ReleaseNotes
	err := s.db.QueryRowContext(ctx, `
		SELECT release_id, customer_text, developer_text, stakeholder_text,
			customer_edited, developer_edited, stakeholder_edited,
			tokens_used, model, generated_at
		FROM release_notes WHERE release_id = $1`, releaseID).
		Scan(&n.ReleaseID, &n.CustomerText, &n.DeveloperText, &n.StakeholderText,
			&n.CustomerEdited, &n.DeveloperEdited, &n.StakeholderEdited,
			&n.TokensUsed, &n.Model, &n.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("scan notes", err).WithTable("release_notes")
	}
	return &n, nil
}

// SetNoteEdited records a manual override of one audience text and flags it
// as edited so regeneration will not silently clobber it.
func (s *Store) SetNoteEdited(ctx context.Context, releaseID, audience, text string) error {
	var column, flag string
	switch audience {
	case "customer":
		column, flag = "customer_text", "customer_edited"
	case "developer":
		column, flag = "developer_text", "developer_edited"
	case "stakeholder":
		column, flag = "stakeholder_text", "stakeholder_edited"
	default:
		return errors.NewValidationError("unknown audience").WithField("audience").WithValue(audience)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE release_notes SET `+column+` = $2, `+flag+` = TRUE WHERE release_id = $1`,
		releaseID, text)
	if err != nil {
		return errors.NewStoreError("update edited note", err).WithTable("release_notes")
	}
	return nil
}

// InsertOutcomes appends one row per distribution attempt. Rows are never
// updated; a retried publish appends a fresh set.
func (s *Store) InsertOutcomes(ctx context.Context, outcomes []Outcome) error {
	for i := range outcomes {
		o := &outcomes[i]
		o.ID = uuid.NewString()

		_, err := s.db.ExecContext(ctx, `
			INSERT INTO distribution_outcomes (id, release_id, audience, channel,
				success, error_detail, responded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, o.ReleaseID, o.Audience, o.Channel, o.Success, o.ErrorDetail, o.RespondedAt)
		if err != nil {
			return errors.NewStoreError("insert outcome", err).WithTable("distribution_outcomes")
		}
	}
	return nil
}

// ListOutcomes returns all recorded attempts for a release, oldest first.
func (s *Store) ListOutcomes(ctx context.Context, releaseID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, release_id, audience, channel, success, error_detail, responded_at, created_at
		FROM distribution_outcomes WHERE release_id = $1 ORDER BY created_at`, releaseID)
	if err != nil {
		return nil, errors.NewStoreError("list outcomes", err).WithTable("distribution_outcomes")
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.ID, &o.ReleaseID, &o.Audience, &o.Channel,
			&o.Success, &o.ErrorDetail, &o.RespondedAt, &o.CreatedAt); err != nil {
			return nil, errors.NewStoreError("scan outcome", err).WithTable("distribution_outcomes")
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate outcomes", err).WithTable("distribution_outcomes")
	}
	return outcomes, nil
}
