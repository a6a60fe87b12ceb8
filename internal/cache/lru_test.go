package cache

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"financas/internal/log"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected a=1, got %q %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	clock.t = clock.t.Add(30 * time.Second)
	c.Set("b", "3") // refreshes b

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("expected nothing left to clean, removed %d", removed)
	}
	if v, ok := c.Get("b"); !ok || v != "3" {
		t.Fatalf("expected b=3, got %q %v", v, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestLRUCache_PurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
	c.Set("c", "3")
	if _, ok := c.Get("c"); !ok {
		t.Fatal("cache must stay usable after purge")
	}
}

func TestManager(t *testing.T) {
	c, clock := newTestCache(10, time.Second)
	c.Set("a", "1")
	clock.t = clock.t.Add(time.Minute)

	m := NewManager(log.New(log.Config{Output: io.Discard}))
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartCleanup(ctx, 10*time.Millisecond)
	m.Stop()
	m.Stop() // idempotent

	NewManager(nil).Stop() // never started
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestManager_CleanupLogsUnderCacheComponent(t *testing.T) {
	out := &syncBuffer{}
	m := NewManager(log.New(log.Config{Level: slog.LevelDebug, Format: "json", Output: out}))

	c, clock := newTestCache(10, time.Second)
	c.Set("a", "1")
	clock.t = clock.t.Add(time.Minute)
	m.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartCleanup(ctx, 5*time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "Expired cache entries removed") {
		if time.Now().After(deadline) {
			t.Fatalf("no cleanup log in %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := out.String(); !strings.Contains(got, `"component":"cache"`) || !strings.Contains(got, `"count":1`) {
		t.Fatalf("unexpected cleanup log %q", got)
	}
}
