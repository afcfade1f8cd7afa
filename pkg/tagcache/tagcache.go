// Package tagcache stores tagging results in named namespaces.
//
// A namespace is an independent table of entries keyed by (identifier,
// context). Opening a namespace creates it; [Cache.Exists] only probes and
// never creates. Entries are msgpack-encoded and the last write wins.
//
// Three backends share the same semantics: [NewBadger] keeps one BadgerDB
// directory per namespace, [NewSQLite] one SQLite file per namespace guarded
// by a cross-process writer lock, and [NewMemory] is meant for tests.
package tagcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Get when the namespace holds no entry for
	// the key.
	ErrNotFound = errors.New("tagcache: not found")

	// ErrInvalidName is returned for namespace names outside
	// [A-Za-z0-9_.-], longer than 128 bytes, empty or starting with '.'.
	ErrInvalidName = errors.New("tagcache: invalid namespace name")

	// ErrUnavailable wraps every backend failure: the cache could not be
	// opened, read or written.
	ErrUnavailable = errors.New("tagcache: unavailable")
)

// MaxNameLen is the longest accepted namespace name.
const MaxNameLen = 128

// ValidateName checks a namespace name.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen || name[0] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Entry is one cached tagging result.
type Entry struct {
	Identifier string    `msgpack:"identifier" json:"identifier"`
	Context    string    `msgpack:"context" json:"context"`
	Words      []string  `msgpack:"words" json:"words"`
	Tags       []string  `msgpack:"tags" json:"tags"`
	CreatedAt  time.Time `msgpack:"created_at" json:"created_at"`
}

// Store is a set of namespaces.
type Store interface {
	// Open returns the named namespace, creating it on first use.
	Open(ctx context.Context, name string) (Namespace, error)

	// Exists reports whether the namespace has been created. It never
	// creates anything.
	Exists(ctx context.Context, name string) (bool, error)

	// Close releases every open namespace.
	Close() error
}

// Namespace is one independent table of entries.
type Namespace interface {
	Name() string

	// Get returns the entry for (identifier, context) or ErrNotFound.
	Get(ctx context.Context, identifier, idCtx string) (*Entry, error)

	// Put stores e, replacing any previous entry with the same key.
	Put(ctx context.Context, e *Entry) error
}

// backend is the storage engine behind a Cache.
type backend interface {
	kind() string
	exists(name string) (bool, error)
	open(name string) (table, error)
}

// table is a single opened namespace in a backend.
type table interface {
	get(ctx context.Context, identifier, idCtx string) ([]byte, error)
	put(ctx context.Context, identifier, idCtx string, value []byte) error
	close() error
}

// Cache implements Store over a backend. Each namespace is opened once and
// shared by all callers; writes to one namespace are serialized, reads run
// concurrently. A slow backend open delays only callers of the same name.
type Cache struct {
	b      backend
	logger *slog.Logger
	opens  singleflight.Group

	mu     sync.Mutex
	open   map[string]*namespace
	closed bool
}

func newCache(b backend, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{b: b, logger: logger, open: make(map[string]*namespace)}
}

// Open implements Store.
func (c *Cache) Open(_ context.Context, name string) (Namespace, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	ns, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if ns != nil {
		return ns, nil
	}
	v, err, _ := c.opens.Do(name, func() (any, error) {
		// A previous flight may have finished since lookup.
		if ns, err := c.lookup(name); ns != nil || err != nil {
			return ns, err
		}
		t, err := c.b.open(name)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s namespace %s: %w", ErrUnavailable, c.b.kind(), name, err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = t.close()
			return nil, errClosed()
		}
		ns := &namespace{name: name, t: t}
		c.open[name] = ns
		c.logger.Debug("tagcache: namespace opened", "backend", c.b.kind(), "namespace", name)
		return ns, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*namespace), nil
}

// lookup returns the already opened namespace, or nil.
func (c *Cache) lookup(name string) (*namespace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed()
	}
	return c.open[name], nil
}

func errClosed() error {
	return fmt.Errorf("%w: cache closed", ErrUnavailable)
}

// Exists implements Store.
func (c *Cache) Exists(_ context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	c.mu.Lock()
	_, ok := c.open[name]
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false, errClosed()
	}
	if ok {
		return true, nil
	}
	ok, err := c.b.exists(name)
	if err != nil {
		return false, fmt.Errorf("%w: probe %s: %w", ErrUnavailable, name, err)
	}
	return ok, nil
}

// Close implements Store. It is safe to call more than once.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for name, ns := range c.open {
		if err := ns.t.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.open = nil
	return errors.Join(errs...)
}

type namespace struct {
	name string
	t    table
	wmu  sync.Mutex
}

func (n *namespace) Name() string { return n.name }

func (n *namespace) Get(ctx context.Context, identifier, idCtx string) (*Entry, error) {
	data, err := n.t.get(ctx, identifier, idCtx)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrUnavailable, n.name, err)
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: decode entry in %s: %w", ErrUnavailable, n.name, err)
	}
	return &e, nil
}

func (n *namespace) Put(ctx context.Context, e *Entry) error {
	if e == nil {
		return errors.New("tagcache: nil entry")
	}
	if len(e.Words) != len(e.Tags) {
		return fmt.Errorf("tagcache: %d words but %d tags", len(e.Words), len(e.Tags))
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("tagcache: encode entry: %w", err)
	}
	n.wmu.Lock()
	defer n.wmu.Unlock()
	if err := n.t.put(ctx, e.Identifier, e.Context, data); err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrUnavailable, n.name, err)
	}
	return nil
}

// key joins context and identifier for byte-keyed backends.
func key(identifier, idCtx string) []byte {
	b := make([]byte, 0, len(idCtx)+1+len(identifier))
	b = append(b, idCtx...)
	b = append(b, 0)
	return append(b, identifier...)
}

var _ Store = (*Cache)(nil)
