package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Backend is the persistent byte-level key/value layer.
// Multi-key writes and deletes are applied as one transaction.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteBackend keeps state in a single SQLite table
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		expanded, err := ExpandHome(path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		dsn = expanded + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// One connection: an in-memory database exists per connection, and writes are serialized anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Get returns the raw value for key
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// SetMany writes all values in one transaction, replacing existing keys
func (b *SQLiteBackend) SetMany(ctx context.Context, values map[string][]byte) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()
		for key, value := range values {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, value, now)
			if err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		return nil
	})
}

// Delete removes keys in one transaction. Missing keys are ignored.
func (b *SQLiteBackend) Delete(ctx context.Context, keys ...string) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close closes the database
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
