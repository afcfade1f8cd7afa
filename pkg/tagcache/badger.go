package tagcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerOptions configures the BadgerDB backend.
type BadgerOptions struct {
	// Dir is the cache root. Each namespace lives in Dir/<name>.
	// Required.
	Dir string

	// Logger receives cache and badger log output. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// NewBadger returns a Cache with one BadgerDB directory per namespace.
func NewBadger(opts BadgerOptions) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("tagcache: BadgerOptions.Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrUnavailable, opts.Dir, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return newCache(&badgerBackend{root: opts.Dir, logger: logger}, logger), nil
}

type badgerBackend struct {
	root   string
	logger *slog.Logger
}

func (*badgerBackend) kind() string { return "badger" }

func (b *badgerBackend) exists(name string) (bool, error) {
	info, err := os.Stat(filepath.Join(b.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (b *badgerBackend) open(name string) (table, error) {
	dir := filepath.Join(b.root, name)
	created := absent(dir)
	dbOpts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{l: b.logger.With("namespace", name)})
	db, err := openBadger(dbOpts)
	if err != nil {
		for _, p := range created {
			_ = os.RemoveAll(p)
		}
		return nil, err
	}
	return &badgerTable{db: db}, nil
}

// openBadger is replaced in tests.
var openBadger = badger.Open

// absent returns the paths that do not exist yet. A failed open removes
// them again so that Exists does not report a namespace that never opened.
func absent(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			out = append(out, p)
		}
	}
	return out
}

type badgerTable struct {
	db *badger.DB
}

func (t *badgerTable) get(_ context.Context, identifier, idCtx string) ([]byte, error) {
	var val []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(identifier, idCtx))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (t *badgerTable) put(_ context.Context, identifier, idCtx string, value []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(identifier, idCtx), value)
	})
}

func (t *badgerTable) close() error {
	return t.db.Close()
}

// badgerLogger forwards badger warnings and errors to slog and drops the
// rest.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any)   { b.l.Error("badger: " + fmt.Sprintf(f, v...)) }
func (b badgerLogger) Warningf(f string, v ...any) { b.l.Warn("badger: " + fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}
