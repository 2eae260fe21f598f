// Package sqlitestore keeps generated scripts in a single SQLite file, for
// deployments that want a listable history without running PostgreSQL.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/sqlscript/internal/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a core.ScriptStore backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping %s: %w", path, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps a database that already has the schema applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate runs all pending migrations on db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlitestore: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("sqlitestore: run migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts the script, replacing any earlier script with the same name.
func (s *Store) Save(ctx context.Context, a core.Artifact, body string) (core.Artifact, error) {
	if strings.TrimSpace(a.Name) == "" {
		return core.Artifact{}, errors.New("sqlitestore: script name is required")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.Size = int64(len(body))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generated_scripts (id, name, table_name, mode, statements, size, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			id = excluded.id,
			table_name = excluded.table_name,
			mode = excluded.mode,
			statements = excluded.statements,
			size = excluded.size,
			body = excluded.body,
			created_at = excluded.created_at`,
		a.ID, a.Name, a.TableName, string(a.Mode), a.Statements, a.Size, body, a.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Artifact{}, fmt.Errorf("sqlitestore: save %s: %w", a.Name, err)
	}
	return a, nil
}

// Open loads a script by name.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, core.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, table_name, mode, statements, size, created_at, body
		FROM generated_scripts
		WHERE name = ?`, name)

	var body string
	a, err := scanArtifact(row.Scan, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Artifact{}, core.ErrArtifactNotFound
	}
	if err != nil {
		return nil, core.Artifact{}, fmt.Errorf("sqlitestore: open %s: %w", name, err)
	}
	return io.NopCloser(strings.NewReader(body)), a, nil
}

// List returns up to limit scripts, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]core.Artifact, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, table_name, mode, statements, size, created_at
		FROM generated_scripts
		ORDER BY created_at DESC, name
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list scripts: %w", err)
	}
	defer rows.Close()

	var out []core.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows.Scan, nil)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan script: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// scanArtifact reads the artifact columns, plus the body when body is non-nil.
func scanArtifact(scan func(...any) error, body *string) (core.Artifact, error) {
	var (
		a       core.Artifact
		mode    string
		created string
	)
	dest := []any{&a.ID, &a.Name, &a.TableName, &mode, &a.Statements, &a.Size, &created}
	if body != nil {
		dest = append(dest, body)
	}
	if err := scan(dest...); err != nil {
		return core.Artifact{}, err
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return core.Artifact{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	a.Mode = core.Mode(mode)
	a.CreatedAt = t
	return a, nil
}
