// Package pgstore keeps generated scripts in PostgreSQL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

// DBTX is the subset of pgx used by the store.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS generated_scripts (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    table_name  TEXT NOT NULL,
    mode        TEXT NOT NULL,
    statements  INTEGER NOT NULL,
    size        BIGINT NOT NULL,
    body        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS generated_scripts_created_at_idx
    ON generated_scripts (created_at DESC);`

const upsertScript = `
INSERT INTO generated_scripts (id, name, table_name, mode, statements, size, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (name) DO UPDATE SET
    id = EXCLUDED.id,
    table_name = EXCLUDED.table_name,
    mode = EXCLUDED.mode,
    statements = EXCLUDED.statements,
    size = EXCLUDED.size,
    body = EXCLUDED.body,
    created_at = EXCLUDED.created_at`

const selectScript = `
SELECT id, name, table_name, mode, statements, size, created_at, body
FROM generated_scripts
WHERE name = $1`

const listScripts = `
SELECT id, name, table_name, mode, statements, size, created_at
FROM generated_scripts
ORDER BY created_at DESC, name
LIMIT $1`

// Store is a core.ScriptStore backed by the generated_scripts table.
type Store struct {
	db DBTX
}

// New returns a store using db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the generated_scripts table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pgstore: create schema: %w", err)
	}
	return nil
}

// Save inserts the script, replacing any earlier script with the same name.
func (s *Store) Save(ctx context.Context, a core.Artifact, body string) (core.Artifact, error) {
	if strings.TrimSpace(a.Name) == "" {
		return core.Artifact{}, errors.New("pgstore: script name is required")
	}

	id := toPgUUID(a.ID)
	if !id.Valid {
		id = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.ID = pgUUIDToString(id)
	a.Size = int64(len(body))

	_, err := s.db.Exec(ctx, upsertScript,
		id, a.Name, a.TableName, string(a.Mode), a.Statements, a.Size, body, a.CreatedAt)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("pgstore: save %s: %w", a.Name, err)
	}
	return a, nil
}

// Open loads a script by name.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, core.Artifact, error) {
	var (
		id   pgtype.UUID
		mode string
		body string
		a    core.Artifact
	)
	err := s.db.QueryRow(ctx, selectScript, name).Scan(
		&id, &a.Name, &a.TableName, &mode, &a.Statements, &a.Size, &a.CreatedAt, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Artifact{}, core.ErrArtifactNotFound
	}
	if err != nil {
		return nil, core.Artifact{}, fmt.Errorf("pgstore: open %s: %w", name, err)
	}

	a.ID = pgUUIDToString(id)
	a.Mode = core.Mode(mode)
	return io.NopCloser(strings.NewReader(body)), a, nil
}

// List returns up to limit scripts, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]core.Artifact, error) {
	var arg any
	if limit > 0 {
		arg = limit
	}

	rows, err := s.db.Query(ctx, listScripts, arg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list scripts: %w", err)
	}
	defer rows.Close()

	var out []core.Artifact
	for rows.Next() {
		var (
			id   pgtype.UUID
			mode string
			a    core.Artifact
		)
		if err := rows.Scan(&id, &a.Name, &a.TableName, &mode, &a.Statements, &a.Size, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan script: %w", err)
		}
		a.ID = pgUUIDToString(id)
		a.Mode = core.Mode(mode)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list scripts: %w", err)
	}
	return out, nil
}

// toPgUUID returns an invalid UUID for empty or malformed input.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
