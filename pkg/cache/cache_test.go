package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSetGetAndExpire(t *testing.T) {
	c := New(10, 0)
	key := fmt.Sprintf("unit-expire-%d", time.Now().UnixNano())

	// ensure no value
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected no value initially")
	}

	// set with ttl
	c.Set(key, "hello", 50*time.Millisecond)
	if v, ok := c.Get(key); !ok || v.(string) != "hello" {
		t.Fatalf("expected value 'hello', got %v ok=%v", v, ok)
	}

	// wait for expiry
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected expired value to be gone")
	}
}

func TestDelete(t *testing.T) {
	c := New(10, 0)
	c.Set("k", 42, time.Second)
	if v, ok := c.Get("k"); !ok || v.(int) != 42 {
		t.Fatalf("expected 42 present before delete, got %v ok=%v", v, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted value to be absent")
	}
}

func TestRefreshExtendsExpiry(t *testing.T) {
	c := New(10, 0)
	c.Set("s", "session", 60*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Refresh("s", 100*time.Millisecond); !ok {
		t.Fatalf("expected value present before expiry")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("s"); !ok {
		t.Fatalf("expected refreshed value to outlive its original ttl")
	}
}

func TestCapacityEvictsLRU(t *testing.T) {
	c := New(2, 0)
	var mu sync.Mutex
	var evicted []string
	c.OnEvict(func(key string, _ any) {
		mu.Lock()
		evicted = append(evicted, key)
		mu.Unlock()
	})

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // b is now least recently used
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", c.Len())
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected eviction callback for b, got %v", evicted)
	}
}

func TestJanitorSweepsExpired(t *testing.T) {
	c := New(0, 10*time.Millisecond)
	defer c.Close()
	done := make(chan string, 1)
	c.OnEvict(func(key string, _ any) { done <- key })

	c.Set("gone", true, 20*time.Millisecond)
	select {
	case k := <-done:
		if k != "gone" {
			t.Fatalf("unexpected eviction %q", k)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not remove expired entry")
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestDefaultIsShared(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("expected a single default cache")
	}
}
