package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"epifeed/internal/archive"
)

// timeLayout keeps a fixed number of fractional digits so stored timestamps
// sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db   *sql.DB
	keep int
}

// New opens (creating if needed) an archive database at path. keep bounds
// how many payloads are retained per key; zero or less keeps only the latest.
func New(path string, keep int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating archive directory: %w", err)
		}
	}
	if keep <= 0 {
		keep = 1
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, keep: keep}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, entry archive.Entry) error {
	if entry.Key == "" {
		return fmt.Errorf("sqlite: archive key is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}
	if entry.Payload == nil {
		entry.Payload = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO raw_payloads (id, source_key, location, fetched_at, size, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Key,
		entry.Location,
		entry.FetchedAt.UTC().Format(timeLayout),
		len(entry.Payload),
		entry.Payload,
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM raw_payloads
		WHERE source_key = ? AND id NOT IN (
			SELECT id FROM raw_payloads
			WHERE source_key = ?
			ORDER BY fetched_at DESC, rowid DESC
			LIMIT ?
		)
	`, entry.Key, entry.Key, s.keep)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *Store) Latest(ctx context.Context, key string) (archive.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_key, location, fetched_at, payload
		FROM raw_payloads
		WHERE source_key = ?
		ORDER BY fetched_at DESC, rowid DESC
		LIMIT 1
	`, key)

	var entry archive.Entry
	var fetchedAt string
	if err := row.Scan(&entry.ID, &entry.Key, &entry.Location, &fetchedAt, &entry.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return archive.Entry{}, fmt.Errorf("%w: %s", archive.ErrNoEntry, key)
		}
		return archive.Entry{}, err
	}
	parsed, err := time.Parse(timeLayout, fetchedAt)
	if err != nil {
		return archive.Entry{}, fmt.Errorf("sqlite: invalid fetched_at %q: %w", fetchedAt, err)
	}
	entry.FetchedAt = parsed
	return entry, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raw_payloads (
			id TEXT PRIMARY KEY,
			source_key TEXT NOT NULL,
			location TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			size INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_raw_payloads_key_time ON raw_payloads (source_key, fetched_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

var _ archive.Archive = (*Store)(nil)
