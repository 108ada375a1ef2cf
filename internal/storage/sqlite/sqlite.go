// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/trustvault/backend/internal/errs"
	"github.com/trustvault/backend/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite. Records are JSON
// documents in a single table; version checks give the conditional-update
// semantics the domain layer relies on.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Serialized access keeps CAS version bumps race-free under the
	// concurrent add/vote paths.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves a record by kind and key.
func (s *SQLiteStore) Get(ctx context.Context, kind storage.Kind, key string) (storage.Record, error) {
	rec := storage.Record{Key: key}
	err := s.db.QueryRowContext(ctx,
		"SELECT version, data FROM records WHERE kind = ? AND key = ?",
		string(kind), key,
	).Scan(&rec.Version, &rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, errs.Newf(errs.NotFound, "%s record %s not found", kind, key)
	}
	if err != nil {
		return storage.Record{}, errs.Wrap(errs.Unavailable, "failed to get record", err)
	}
	return rec, nil
}

// Put creates or replaces a record, bumping its version.
func (s *SQLiteStore) Put(ctx context.Context, kind storage.Kind, key string, data []byte, index map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM records WHERE kind = ? AND key = ?",
		string(kind), key,
	).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		version = 0
	case err != nil:
		return errs.Wrap(errs.Unavailable, "failed to read record version", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO records (kind, key, version, data) VALUES (?, ?, ?, ?)",
		string(kind), key, version+1, data,
	)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to write record", err)
	}

	if err := writeIndex(ctx, tx, kind, key, index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to commit", err)
	}
	return nil
}

// Update replaces a record only if the stored version matches expect.
func (s *SQLiteStore) Update(ctx context.Context, kind storage.Kind, key string, expect int64, data []byte, index map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE records SET version = ?, data = ? WHERE kind = ? AND key = ? AND version = ?",
		expect+1, data, string(kind), key, expect,
	)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to update record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to read update result", err)
	}
	if n == 0 {
		// Distinguish a missing record from a lost race.
		var current int64
		err := tx.QueryRowContext(ctx,
			"SELECT version FROM records WHERE kind = ? AND key = ?",
			string(kind), key,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return errs.Newf(errs.NotFound, "%s record %s not found", kind, key)
		}
		if err != nil {
			return errs.Wrap(errs.Unavailable, "failed to read record version", err)
		}
		return errs.Newf(errs.Conflict, "%s record %s modified concurrently (version %d, expected %d)", kind, key, current, expect)
	}

	if err := writeIndex(ctx, tx, kind, key, index); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to commit", err)
	}
	return nil
}

// Query returns all records whose index entry equals value.
func (s *SQLiteStore) Query(ctx context.Context, kind storage.Kind, index, value string) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.key, r.version, r.data
		 FROM records r
		 JOIN record_index i ON i.kind = r.kind AND i.key = r.key
		 WHERE i.kind = ? AND i.idx = ? AND i.value = ?
		 ORDER BY r.key`,
		string(kind), index, value,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to query index", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Scan returns every record of a kind.
func (s *SQLiteStore) Scan(ctx context.Context, kind storage.Kind) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, version, data FROM records WHERE kind = ? ORDER BY key",
		string(kind),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to scan records", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes a record and its index entries.
func (s *SQLiteStore) Delete(ctx context.Context, kind storage.Kind, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM records WHERE kind = ? AND key = ?", string(kind), key,
	); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to delete record", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM record_index WHERE kind = ? AND key = ?", string(kind), key,
	); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to delete index entries", err)
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to commit", err)
	}
	return nil
}

func writeIndex(ctx context.Context, tx *sql.Tx, kind storage.Kind, key string, index map[string]string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM record_index WHERE kind = ? AND key = ?", string(kind), key,
	); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to clear index entries", err)
	}
	for idx, value := range index {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO record_index (kind, idx, value, key) VALUES (?, ?, ?, ?)",
			string(kind), idx, value, key,
		); err != nil {
			return errs.Wrap(errs.Unavailable, "failed to write index entry", err)
		}
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]storage.Record, error) {
	var out []storage.Record
	for rows.Next() {
		var rec storage.Record
		if err := rows.Scan(&rec.Key, &rec.Version, &rec.Data); err != nil {
			return nil, errs.Wrap(errs.Unavailable, "failed to scan record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to iterate records", err)
	}
	return out, nil
}
