package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/dshills/paperflow/paper"
)

// SQLiteStore archives collections in a single-file SQLite database.
// Zero-setup persistence for single-process deployments; WAL mode keeps
// reads concurrent with the writer.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and runs
// the schema migration. Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS paper_collections (
    run_id     TEXT PRIMARY KEY,
    query      TEXT NOT NULL,
    saved_at   TIMESTAMP NOT NULL,
    collection TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collections_saved_at
    ON paper_collections (saved_at DESC);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	blob, err := json.Marshal(rec.Collection)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO paper_collections (run_id, query, saved_at, collection)
VALUES (?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    query = excluded.query,
    saved_at = excluded.saved_at,
    collection = excluded.collection`,
		rec.RunID, rec.Query, rec.SavedAt.UTC(), string(blob))
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, query, saved_at, collection
FROM paper_collections WHERE run_id = ?`, runID)
	return scanRecord(row)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
SELECT run_id, query, saved_at, collection
FROM paper_collections ORDER BY saved_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM paper_collections WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var blob string
	if err := row.Scan(&rec.RunID, &rec.Query, &rec.SavedAt, &blob); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("scan collection: %w", err)
	}
	var coll paper.PaperCollection
	if err := json.Unmarshal([]byte(blob), &coll); err != nil {
		return Record{}, fmt.Errorf("unmarshal collection: %w", err)
	}
	rec.Collection = coll
	return rec, nil
}
