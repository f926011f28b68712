package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/shiplog/shiplog/internal/errors"
)

// CreateRepo persists a new repository subscription. The ID is assigned here.
func (s *Store) CreateRepo(ctx context.Context, repo *Repo) error {
	repo.ID = uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repos (id, full_name, active, webhook_secret, webhook_hook_id,
			encrypted_token, style_tone, style_language, style_product)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		repo.ID, repo.FullName, repo.Active, repo.WebhookSecret, repo.WebhookHookID,
		repo.EncryptedToken, repo.StyleTone, repo.StyleLanguage, repo.StyleProduct)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewAlreadyExistsError("repository", repo.FullName).WithCause(err)
		}
		return errors.NewStoreError("insert repo", err).WithTable("repos")
	}
	return nil
}

// GetRepoByFullName looks a subscription up by "owner/name".
// Returns ErrRepoNotConnected when no row exists.
func (s *Store) GetRepoByFullName(ctx context.Context, fullName string) (*Repo, error) {
	return s.scanRepo(s.db.QueryRowContext(ctx, `
		SELECT id, full_name, active, webhook_secret, webhook_hook_id,
			encrypted_token, style_tone, style_language, style_product, created_at
		FROM repos WHERE full_name = $1`, fullName))
}

// GetRepoByID looks a subscription up by ID.
func (s *Store) GetRepoByID(ctx context.Context, id string) (*Repo, error) {
	return s.scanRepo(s.db.QueryRowContext(ctx, `
		SELECT id, full_name, active, webhook_secret, webhook_hook_id,
			encrypted_token, style_tone, style_language, style_product, created_at
		FROM repos WHERE id = $1`, id))
}

func (s *Store) scanRepo(row *sql.Row) (*Repo, error) {
	var repo Repo
	err := row.Scan(&repo.ID, &repo.FullName, &repo.Active, &repo.WebhookSecret,
		&repo.WebhookHookID, &repo.EncryptedToken, &repo.StyleTone,
		&repo.StyleLanguage, &repo.StyleProduct, &repo.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrRepoNotConnected
	}
	if err != nil {
		return nil, errors.NewStoreError("scan repo", err).WithTable("repos")
	}
	return &repo, nil
}

// SetRepoHookID records the webhook registration ID after connecting.
func (s *Store) SetRepoHookID(ctx context.Context, repoID string, hookID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE repos SET webhook_hook_id = $2 WHERE id = $1`, repoID, hookID)
	if err != nil {
		return errors.NewStoreError("update hook id", err).WithTable("repos")
	}
	return nil
}

// SetRepoActive toggles the subscription without deleting its history.
func (s *Store) SetRepoActive(ctx context.Context, repoID string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE repos SET active = $2 WHERE id = $1`, repoID, active)
	if err != nil {
		return errors.NewStoreError("update active flag", err).WithTable("repos")
	}
	return nil
}

// AddChannel registers a delivery destination for a repository.
func (s *Store) AddChannel(ctx context.Context, ch *Channel) error {
	ch.ID = uuid.NewString()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, repo_id, kind, destination, audience, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.RepoID, ch.Kind, ch.Destination, ch.Audience, ch.Enabled)
	if err != nil {
		return errors.NewStoreError("insert channel", err).WithTable("channels")
	}
	return nil
}

// ListEnabledChannels returns the enabled delivery destinations for a repo.
func (s *Store) ListEnabledChannels(ctx context.Context, repoID string) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, kind, destination, audience, enabled
		FROM channels WHERE repo_id = $1 AND enabled ORDER BY created_at`, repoID)
	if err != nil {
		return nil, errors.NewStoreError("list channels", err).WithTable("channels")
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.ID, &ch.RepoID, &ch.Kind, &ch.Destination, &ch.Audience, &ch.Enabled); err != nil {
			return nil, errors.NewStoreError("scan channel", err).WithTable("channels")
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate channels", err).WithTable("channels")
	}
	return channels, nil
}
