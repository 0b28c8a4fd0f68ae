// Package postgres provides the searchable transcript archive: a PostgreSQL
// mirror of every revision the filesystem store writes, with GIN full-text
// search over the transcript text.
//
// The filesystem store remains the source of truth; archive failures are
// reported to the caller but must never abort a user-facing flow.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranscriptRevisions = `
CREATE TABLE IF NOT EXISTS transcript_revisions (
    id               BIGSERIAL    PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    transcription_id TEXT         NOT NULL,
    version          INTEGER      NOT NULL,
    folder           TEXT         NOT NULL DEFAULT '',
    text             TEXT         NOT NULL,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, transcription_id, version)
);

CREATE INDEX IF NOT EXISTS idx_transcript_revisions_user
    ON transcript_revisions (user_id, transcription_id);

CREATE INDEX IF NOT EXISTS idx_transcript_revisions_fts
    ON transcript_revisions USING GIN (to_tsvector('english', text));
`

// Revision is one archived transcript version.
type Revision struct {
	UserID          string
	TranscriptionID string
	Version         int
	Folder          string
	Text            string
	CreatedAt       time.Time
}

// Archive mirrors transcript revisions into PostgreSQL and serves full-text
// search over them. All methods are safe for concurrent use.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive establishes a connection pool to the database at dsn and runs
// the schema migration.
func NewArchive(ctx context.Context, dsn string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlTranscriptRevisions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (a *Archive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

// Record inserts one revision into the archive. Re-recording the same
// (user, transcription, version) is a no-op so a retried flow never fails on
// the unique constraint.
func (a *Archive) Record(ctx context.Context, rev Revision) error {
	const q = `
		INSERT INTO transcript_revisions
		    (user_id, transcription_id, version, folder, text)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, transcription_id, version) DO NOTHING`

	_, err := a.pool.Exec(ctx, q,
		rev.UserID,
		rev.TranscriptionID,
		rev.Version,
		rev.Folder,
		rev.Text,
	)
	if err != nil {
		return fmt.Errorf("archive: record revision: %w", err)
	}
	return nil
}

// Search performs a full-text search over the latest revision of each of the
// user's transcriptions, newest first. The query is passed to
// plainto_tsquery so no special operator syntax is required.
func (a *Archive) Search(ctx context.Context, userID, query string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
		SELECT DISTINCT ON (transcription_id)
		       user_id, transcription_id, version, folder, text, created_at
		FROM   transcript_revisions
		WHERE  user_id = $1
		  AND  to_tsvector('english', text) @@ plainto_tsquery('english', $2)
		ORDER  BY transcription_id, version DESC, created_at DESC
		LIMIT  $3`

	rows, err := a.pool.Query(ctx, q, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	return collectRevisions(rows)
}

// History returns every archived version of one transcription in ascending
// version order.
func (a *Archive) History(ctx context.Context, userID, transcriptionID string) ([]Revision, error) {
	const q = `
		SELECT user_id, transcription_id, version, folder, text, created_at
		FROM   transcript_revisions
		WHERE  user_id = $1 AND transcription_id = $2
		ORDER  BY version`

	rows, err := a.pool.Query(ctx, q, userID, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("archive: history: %w", err)
	}
	return collectRevisions(rows)
}

// collectRevisions scans pgx rows into a slice of Revision values.
func collectRevisions(rows pgx.Rows) ([]Revision, error) {
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.UserID, &r.TranscriptionID, &r.Version, &r.Folder, &r.Text, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate rows: %w", err)
	}
	return revs, nil
}
