package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/paperflow/paper"
)

// MySQLStore archives collections in MySQL for shared deployments.
//
// DSN format (go-sql-driver): "user:pass@tcp(host:3306)/dbname?parseTime=true".
// parseTime=true is required so saved_at scans into time.Time.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects to MySQL and runs the schema migration.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS paper_collections (
    run_id     VARCHAR(64) PRIMARY KEY,
    query      TEXT NOT NULL,
    saved_at   DATETIME(6) NOT NULL,
    collection JSON NOT NULL,
    INDEX idx_collections_saved_at (saved_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate mysql: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *MySQLStore) Save(ctx context.Context, rec Record) error {
	blob, err := json.Marshal(rec.Collection)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO paper_collections (run_id, query, saved_at, collection)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    query = VALUES(query),
    saved_at = VALUES(saved_at),
    collection = VALUES(collection)`,
		rec.RunID, rec.Query, rec.SavedAt.UTC(), string(blob))
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *MySQLStore) Load(ctx context.Context, runID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, query, saved_at, collection
FROM paper_collections WHERE run_id = ?`, runID)

	var rec Record
	var blob []byte
	if err := row.Scan(&rec.RunID, &rec.Query, &rec.SavedAt, &blob); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("scan collection: %w", err)
	}
	var coll paper.PaperCollection
	if err := json.Unmarshal(blob, &coll); err != nil {
		return Record{}, fmt.Errorf("unmarshal collection: %w", err)
	}
	rec.Collection = coll
	return rec, nil
}

// List implements Store.
func (s *MySQLStore) List(ctx context.Context, limit int) ([]Record, error) {
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
		var rec Record
		var blob []byte
		if err := rows.Scan(&rec.RunID, &rec.Query, &rec.SavedAt, &blob); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		var coll paper.PaperCollection
		if err := json.Unmarshal(blob, &coll); err != nil {
			return nil, fmt.Errorf("unmarshal collection: %w", err)
		}
		rec.Collection = coll
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete implements Store.
func (s *MySQLStore) Delete(ctx context.Context, runID string) error {
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
func (s *MySQLStore) Close() error { return s.db.Close() }
