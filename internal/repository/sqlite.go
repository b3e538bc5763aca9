package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/acadix/reconcile/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	fields     TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// SQLite stores each document as a JSON field blob keyed by
// (collection, id). Suitable for single-operator installs.
type SQLite struct {
	db *sql.DB
}

var _ Repository = (*SQLite)(nil)

// NewSQLite opens (creating if needed) a SQLite-backed repository at path.
// The special path ":memory:" creates an in-memory database for tests.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for better concurrency between the CLI and any viewer.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, &types.RepositoryError{Op: "list", Collection: collection, Err: err}
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &types.RepositoryError{Op: "list", Collection: collection, Err: err}
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, &types.RepositoryError{Op: "list", Collection: collection, ID: id, Err: err}
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, &types.RepositoryError{Op: "list", Collection: collection, Err: err}
	}
	return docs, nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &types.RepositoryError{Op: "get", Collection: collection, ID: id, Err: types.ErrNotFound}
	}
	if err != nil {
		return nil, &types.RepositoryError{Op: "get", Collection: collection, ID: id, Err: err}
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, &types.RepositoryError{Op: "get", Collection: collection, ID: id, Err: err}
	}
	return &Document{ID: id, Fields: fields}, nil
}

func (s *SQLite) Put(ctx context.Context, collection, id string, fields map[string]interface{}, mode WriteMode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.RepositoryError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := putTx(ctx, tx, collection, id, fields, mode); err != nil {
		return &types.RepositoryError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &types.RepositoryError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return &types.RepositoryError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &types.RepositoryError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	if n == 0 {
		return &types.RepositoryError{Op: "delete", Collection: collection, ID: id, Err: types.ErrNotFound}
	}
	return nil
}

// BatchWrite runs all mutations in one transaction: the batch fully
// commits or fully fails.
func (s *SQLite) BatchWrite(ctx context.Context, mutations []Mutation) error {
	if err := validateBatch(mutations); err != nil {
		return err
	}
	if len(mutations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.RepositoryError{Op: "batch", Collection: mutations[0].Collection, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, mut := range mutations {
		if mut.Delete {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection = ? AND id = ?`, mut.Collection, mut.ID); err != nil {
				return &types.RepositoryError{Op: "batch", Collection: mut.Collection, ID: mut.ID, Err: err}
			}
			continue
		}
		if err := putTx(ctx, tx, mut.Collection, mut.ID, mut.Fields, mut.Mode); err != nil {
			return &types.RepositoryError{Op: "batch", Collection: mut.Collection, ID: mut.ID, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &types.RepositoryError{Op: "batch", Collection: mutations[0].Collection, Err: err}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func putTx(ctx context.Context, tx *sql.Tx, collection, id string, fields map[string]interface{}, mode WriteMode) error {
	write := fields
	if mode == ModeMerge {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
		switch err {
		case nil:
			existing, derr := decodeFields(raw)
			if derr != nil {
				return derr
			}
			write = mergeFields(existing, fields)
		case sql.ErrNoRows:
			// No existing document; merge degenerates to insert.
		default:
			return err
		}
	}

	encoded, err := json.Marshal(write)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
		collection, id, string(encoded), time.Now().UTC())
	return err
}

func decodeFields(raw string) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}
