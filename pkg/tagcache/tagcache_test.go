package tagcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

type factory func(t *testing.T, dir string) *Cache

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, _ string) *Cache { return NewMemory(nil) },
		"badger": func(t *testing.T, dir string) *Cache {
			c, err := NewBadger(BadgerOptions{Dir: dir})
			if err != nil {
				t.Fatal(err)
			}
			return c
		},
		"sqlite": func(t *testing.T, dir string) *Cache {
			c, err := NewSQLite(SQLiteOptions{Dir: dir})
			if err != nil {
				t.Fatal(err)
			}
			return c
		},
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, c *Cache)) {
	for name, newCache := range backends() {
		t.Run(name, func(t *testing.T) {
			c := newCache(t, t.TempDir())
			t.Cleanup(func() { c.Close() })
			fn(t, c)
		})
	}
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"proj", "my-repo_v2.1", "A", strings.Repeat("x", MaxNameLen)} {
		if err := ValidateName(ok); err != nil {
			t.Errorf("ValidateName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", ".hidden", "a/b", "../x", "sp ace", "ü", strings.Repeat("x", MaxNameLen+1)} {
		if err := ValidateName(bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", bad, err)
		}
	}
}

func TestProbeNeverCreates(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache) {
		ctx := context.Background()
		for range 2 {
			ok, err := c.Exists(ctx, "proj")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("probe reported a namespace that was never opened")
			}
		}
		if _, err := c.Open(ctx, "proj"); err != nil {
			t.Fatal(err)
		}
		ok, err := c.Exists(ctx, "proj")
		if err != nil || !ok {
			t.Fatalf("Exists after Open = %v, %v", ok, err)
		}
		if _, err := c.Exists(ctx, "../etc"); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Exists invalid name err = %v", err)
		}
	})
}

func TestPutGet(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache) {
		ctx := context.Background()
		ns, err := c.Open(ctx, "proj")
		if err != nil {
			t.Fatal(err)
		}
		if ns.Name() != "proj" {
			t.Fatalf("Name() = %q", ns.Name())
		}
		if _, err := ns.Get(ctx, "numberArray", "DECLARATION"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get missing err = %v", err)
		}

		e := &Entry{Identifier: "numberArray", Context: "DECLARATION", Words: []string{"number", "Array"}, Tags: []string{"NM", "N"}}
		if err := ns.Put(ctx, e); err != nil {
			t.Fatal(err)
		}
		got, err := ns.Get(ctx, "numberArray", "DECLARATION")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got.Tags, " ") != "NM N" || strings.Join(got.Words, " ") != "number Array" || got.CreatedAt.IsZero() {
			t.Fatalf("Get = %+v", got)
		}

		// Same identifier in a different context is a different key.
		if _, err := ns.Get(ctx, "numberArray", "FUNCTION"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get other context err = %v", err)
		}

		e2 := &Entry{Identifier: "numberArray", Context: "DECLARATION", Words: []string{"number", "Array"}, Tags: []string{"N", "N"}}
		if err := ns.Put(ctx, e2); err != nil {
			t.Fatal(err)
		}
		got, err = ns.Get(ctx, "numberArray", "DECLARATION")
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got.Tags, " ") != "N N" {
			t.Fatalf("last write should win, got %v", got.Tags)
		}

		if err := ns.Put(ctx, &Entry{Identifier: "x", Context: "CLASS", Words: []string{"x"}}); err == nil {
			t.Fatal("Put with misaligned tags should fail")
		}
	})
}

func TestNamespacesAreIndependent(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache) {
		ctx := context.Background()
		a, err := c.Open(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		b, err := c.Open(ctx, "b")
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Put(ctx, &Entry{Identifier: "get", Context: "FUNCTION", Words: []string{"get"}, Tags: []string{"V"}}); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Get(ctx, "get", "FUNCTION"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("entry leaked across namespaces: %v", err)
		}
		again, err := c.Open(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if again != a {
			t.Fatal("Open should return the shared handle")
		}
	})
}

func TestConcurrentAccess(t *testing.T) {
	eachBackend(t, func(t *testing.T, c *Cache) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 64)
		for g := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ns, err := c.Open(ctx, "shared")
				if err != nil {
					errs <- err
					return
				}
				for i := range 8 {
					id := fmt.Sprintf("id%d", i)
					e := &Entry{Identifier: id, Context: "FUNCTION", Words: []string{id}, Tags: []string{fmt.Sprint(g)}}
					if err := ns.Put(ctx, e); err != nil {
						errs <- err
						return
					}
					if _, err := ns.Get(ctx, id, "FUNCTION"); err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}
	})
}

func TestClosedCache(t *testing.T) {
	c := NewMemory(nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
	ctx := context.Background()
	if _, err := c.Open(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open after Close err = %v", err)
	}
	if _, err := c.Exists(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Exists after Close err = %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	for _, name := range []string{"badger", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			newCache := backends()[name]

			c := newCache(t, dir)
			ns, err := c.Open(ctx, "proj")
			if err != nil {
				t.Fatal(err)
			}
			if err := ns.Put(ctx, &Entry{Identifier: "getName", Context: "FUNCTION", Words: []string{"get", "Name"}, Tags: []string{"V", "N"}}); err != nil {
				t.Fatal(err)
			}
			if err := c.Close(); err != nil {
				t.Fatal(err)
			}

			c = newCache(t, dir)
			t.Cleanup(func() { c.Close() })
			ok, err := c.Exists(ctx, "proj")
			if err != nil || !ok {
				t.Fatalf("Exists after reopen = %v, %v", ok, err)
			}
			ns, err = c.Open(ctx, "proj")
			if err != nil {
				t.Fatal(err)
			}
			got, err := ns.Get(ctx, "getName", "FUNCTION")
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(got.Tags, " ") != "V N" {
				t.Fatalf("tags = %v", got.Tags)
			}
		})
	}
}

func TestBadgerOpenFailure(t *testing.T) {
	dir := t.TempDir()
	c, err := NewBadger(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	// A regular file where the namespace directory should be.
	if err := os.WriteFile(filepath.Join(dir, "broken"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Open(context.Background(), "broken"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open err = %v, want ErrUnavailable", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken")); err != nil {
		t.Fatalf("pre-existing path removed after failed open: %v", err)
	}
}

func TestBadgerFailedOpenLeavesNothing(t *testing.T) {
	orig := openBadger
	t.Cleanup(func() { openBadger = orig })
	openBadger = func(o badger.Options) (*badger.DB, error) {
		if err := os.MkdirAll(o.Dir, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(o.Dir, "MANIFEST"), []byte("x"), 0o644); err != nil {
			return nil, err
		}
		return nil, errors.New("manifest corrupted")
	}

	dir := t.TempDir()
	c, err := NewBadger(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()
	if _, err := c.Open(ctx, "proj"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open err = %v, want ErrUnavailable", err)
	}
	if ok, err := c.Exists(ctx, "proj"); err != nil || ok {
		t.Fatalf("Exists after failed open = %v, %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "proj")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("namespace directory left behind: %v", err)
	}
}

func TestSQLiteFailedOpenLeavesNothing(t *testing.T) {
	orig := initSchema
	t.Cleanup(func() { initSchema = orig })
	initSchema = func(db *sql.DB) error {
		// Touch the file so the failure happens after it exists on disk.
		if _, err := db.Exec("CREATE TABLE scratch (x INTEGER)"); err != nil {
			return err
		}
		return errors.New("disk I/O error")
	}

	dir := t.TempDir()
	c, err := NewSQLite(SQLiteOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()
	if _, err := c.Open(ctx, "proj"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open err = %v, want ErrUnavailable", err)
	}
	if ok, err := c.Exists(ctx, "proj"); err != nil || ok {
		t.Fatalf("Exists after failed open = %v, %v", ok, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("files left behind: %v", entries)
	}

	// A database that was there before a failed open is kept.
	initSchema = orig
	if _, err := c.Open(ctx, "kept"); err != nil {
		t.Fatal(err)
	}
	initSchema = func(*sql.DB) error { return errors.New("disk I/O error") }
	c2, err := NewSQLite(SQLiteOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c2.Close() })
	if _, err := c2.Open(ctx, "kept"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open err = %v, want ErrUnavailable", err)
	}
	if ok, err := c2.Exists(ctx, "kept"); err != nil || !ok {
		t.Fatalf("Exists of pre-existing namespace = %v, %v", ok, err)
	}
}

// gatedBackend holds open("slow") until gate is closed.
type gatedBackend struct {
	*memoryBackend
	gate      chan struct{}
	entered   chan struct{}
	slowOpens atomic.Int64
}

func newGatedCache() (*Cache, *gatedBackend) {
	b := &gatedBackend{
		memoryBackend: &memoryBackend{tables: make(map[string]*memoryTable)},
		gate:          make(chan struct{}),
		entered:       make(chan struct{}),
	}
	return newCache(b, nil), b
}

func (b *gatedBackend) open(name string) (table, error) {
	if name == "slow" {
		if b.slowOpens.Add(1) == 1 {
			close(b.entered)
		}
		<-b.gate
	}
	return b.memoryBackend.open(name)
}

func TestSlowOpenDoesNotBlockOtherNamespaces(t *testing.T) {
	c, b := newGatedCache()
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	type opened struct {
		ns  Namespace
		err error
	}
	slow := make(chan opened, 2)
	for range 2 {
		go func() {
			ns, err := c.Open(ctx, "slow")
			slow <- opened{ns, err}
		}()
	}
	<-b.entered

	done := make(chan error, 1)
	go func() {
		ok, err := c.Exists(ctx, "other")
		if err != nil || ok {
			done <- fmt.Errorf("Exists(other) = %v, %v", ok, err)
			return
		}
		_, err = c.Open(ctx, "fast")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Exists and Open of other namespaces waited on a pending open")
	}

	close(b.gate)
	first, second := <-slow, <-slow
	if first.err != nil || second.err != nil {
		t.Fatalf("slow opens: %v, %v", first.err, second.err)
	}
	if first.ns != second.ns {
		t.Fatal("concurrent opens of one namespace returned different handles")
	}
	if n := b.slowOpens.Load(); n != 1 {
		t.Fatalf("backend opened slow %d times, want 1", n)
	}
}

func TestCloseDuringOpen(t *testing.T) {
	c, b := newGatedCache()
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := c.Open(ctx, "slow")
		errc <- err
	}()
	<-b.entered
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	close(b.gate)
	if err := <-errc; !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open finishing after Close err = %v, want ErrUnavailable", err)
	}
}
