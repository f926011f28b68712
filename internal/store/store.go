// Package store is the Postgres persistence layer: repository subscriptions,
// releases, generated notes, and distribution outcomes. It is the only shared
// mutable resource in the pipeline; all writes are single-row operations that
// are idempotent by key.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/shiplog/shiplog/internal/errors"
)

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.NewStoreError("open database", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("ping database", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// schema is applied as a whole; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS repos (
	id              TEXT PRIMARY KEY,
	full_name       TEXT NOT NULL UNIQUE,
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	webhook_secret  TEXT NOT NULL,
	webhook_hook_id BIGINT NOT NULL DEFAULT 0,
	encrypted_token TEXT NOT NULL,
	style_tone      TEXT NOT NULL DEFAULT '',
	style_language  TEXT NOT NULL DEFAULT '',
	style_product   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channels (
	id          TEXT PRIMARY KEY,
	repo_id     TEXT NOT NULL REFERENCES repos(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	destination TEXT NOT NULL,
	audience    TEXT NOT NULL,
	enabled     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS releases (
	id          TEXT PRIMARY KEY,
	repo_id     TEXT NOT NULL REFERENCES repos(id) ON DELETE CASCADE,
	tag_name    TEXT NOT NULL,
	status      TEXT NOT NULL,
	release_url TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (repo_id, tag_name)
);

CREATE TABLE IF NOT EXISTS release_notes (
	release_id         TEXT PRIMARY KEY REFERENCES releases(id) ON DELETE CASCADE,
	customer_text      TEXT NOT NULL,
	developer_text     TEXT NOT NULL,
	stakeholder_text   TEXT NOT NULL,
	customer_edited    BOOLEAN NOT NULL DEFAULT FALSE,
	developer_edited   BOOLEAN NOT NULL DEFAULT FALSE,
	stakeholder_edited BOOLEAN NOT NULL DEFAULT FALSE,
	tokens_used        INTEGER NOT NULL DEFAULT 0,
	model              TEXT NOT NULL DEFAULT '',
	generated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS distribution_outcomes (
	id           TEXT PRIMARY KEY,
	release_id   TEXT NOT NULL REFERENCES releases(id) ON DELETE CASCADE,
	audience     TEXT NOT NULL,
	channel      TEXT NOT NULL,
	success      BOOLEAN NOT NULL,
	error_detail TEXT NOT NULL DEFAULT '',
	responded_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_releases_repo ON releases(repo_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_release ON distribution_outcomes(release_id);
`

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.NewStoreError("apply schema", err).WithOperation("migrate")
	}
	return nil
}

// uniqueViolation is the Postgres error code for unique-constraint failures.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
