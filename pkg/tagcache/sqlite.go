package tagcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const (
	sqliteExt         = ".db"
	lockTimeout       = 5 * time.Second
	lockRetryInterval = 10 * time.Millisecond
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	context    TEXT NOT NULL,
	identifier TEXT NOT NULL,
	value      BLOB NOT NULL,
	PRIMARY KEY (context, identifier)
)`

// SQLiteOptions configures the SQLite backend.
type SQLiteOptions struct {
	// Dir is the cache root. Each namespace is the file Dir/<name>.db with
	// a sibling <name>.db.lock used as the writer lock.
	// Required.
	Dir string

	Logger *slog.Logger
}

// NewSQLite returns a Cache with one SQLite file per namespace. Writers to
// the same namespace are serialized across processes by a file lock.
func NewSQLite(opts SQLiteOptions) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("tagcache: SQLiteOptions.Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrUnavailable, opts.Dir, err)
	}
	return newCache(&sqliteBackend{root: opts.Dir}, opts.Logger), nil
}

type sqliteBackend struct {
	root string
}

func (*sqliteBackend) kind() string { return "sqlite" }

func (b *sqliteBackend) path(name string) string {
	return filepath.Join(b.root, name+sqliteExt)
}

func (b *sqliteBackend) exists(name string) (bool, error) {
	_, err := os.Stat(b.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (b *sqliteBackend) open(name string) (table, error) {
	path := b.path(name)
	created := absent(path, path+"-wal", path+"-shm")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		for _, p := range created {
			_ = os.Remove(p)
		}
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &sqliteTable{db: db, lock: flock.New(path + ".lock")}, nil
}

// initSchema is replaced in tests.
var initSchema = func(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

type sqliteTable struct {
	db   *sql.DB
	lock *flock.Flock
}

func (t *sqliteTable) get(ctx context.Context, identifier, idCtx string) ([]byte, error) {
	var val []byte
	err := t.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE context = ? AND identifier = ?`,
		idCtx, identifier,
	).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return val, err
}

func (t *sqliteTable) put(ctx context.Context, identifier, idCtx string, value []byte) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := t.lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire writer lock: timeout after %v", lockTimeout)
	}
	defer t.lock.Unlock()

	_, err = t.db.ExecContext(ctx,
		`INSERT INTO entries (context, identifier, value) VALUES (?, ?, ?)
		 ON CONFLICT (context, identifier) DO UPDATE SET value = excluded.value`,
		idCtx, identifier, value,
	)
	return err
}

func (t *sqliteTable) close() error {
	return t.db.Close()
}
