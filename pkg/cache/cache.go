package cache

import (
	"container/list"
	"sync"
	"time"
)

// Item represents a cached value with expiration time.
type Item struct {
	V   any
	Exp int64 // unix nanoseconds; 0 = no expiry
}

// Cache is a simple in-memory LRU/TTL cache safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]*entry
	order    *list.List // MRU at front, LRU at back
	maxItems int        // 0 = unlimited
	onEvict  func(key string, v any)
	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	key  string
	item Item
	elem *list.Element
}

var (
	defaultCache *Cache
	once         sync.Once
	defaultMax   = 500
)

// New returns a cache holding at most maxItems entries (0 = unlimited). When
// sweep > 0 a janitor removes expired entries at that interval until Close.
func New(maxItems int, sweep time.Duration) *Cache {
	if maxItems < 0 {
		maxItems = 0
	}
	c := &Cache{items: make(map[string]*entry), order: list.New(), maxItems: maxItems, stop: make(chan struct{})}
	if sweep > 0 {
		go c.janitor(sweep)
	}
	return c
}

// Default returns a process-wide cache instance.
func Default() *Cache {
	once.Do(func() {
		defaultCache = New(defaultMax, 60*time.Second)
	})
	return defaultCache
}

// OnEvict registers a callback for entries that leave the cache through
// expiry, capacity eviction or Delete. It runs without the cache lock held.
func (c *Cache) OnEvict(fn func(key string, v any)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns value and whether it exists and not expired.
func (c *Cache) Get(key string) (any, bool) {
	return c.get(key, 0)
}

// Refresh is Get that also pushes the expiry ttl into the future, for
// entries that should live as long as they are in use.
func (c *Cache) Refresh(key string, ttl time.Duration) (any, bool) {
	return c.get(key, ttl)
}

func (c *Cache) get(key string, ttl time.Duration) (any, bool) {
	if c == nil {
		return nil, false
	}
	now := time.Now().UnixNano()
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if e.item.Exp != 0 && e.item.Exp < now {
		// lazy delete
		removed := c.removeNoLock(key)
		fn := c.onEvict
		c.mu.Unlock()
		c.notify(fn, removed)
		return nil, false
	}
	if ttl > 0 {
		e.item.Exp = time.Now().Add(ttl).UnixNano()
	}
	// move to front (MRU)
	if e.elem != nil {
		c.order.MoveToFront(e.elem)
	}
	v := e.item.V
	c.mu.Unlock()
	return v, true
}

// Set sets a value with TTL. ttl<=0 means no expiry.
func (c *Cache) Set(key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	var evicted []*entry
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.item = Item{V: v, Exp: exp}
		if e.elem != nil {
			c.order.MoveToFront(e.elem)
		}
	} else {
		e := &entry{key: key, item: Item{V: v, Exp: exp}}
		e.elem = c.order.PushFront(e)
		c.items[key] = e
		// enforce capacity
		for c.maxItems > 0 && c.order.Len() > c.maxItems {
			evicted = append(evicted, c.evictLRUNoLock())
		}
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted...)
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	removed := c.removeNoLock(key)
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, removed)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// janitor periodically removes expired items.
func (c *Cache) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now().UnixNano()
	var expired []*entry
	c.mu.Lock()
	for k, e := range c.items {
		if e.item.Exp != 0 && e.item.Exp < now {
			expired = append(expired, c.removeNoLock(k))
		}
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, expired...)
}

// SetMaxItems updates capacity for the default cache. Safe to call at startup.
func SetMaxItems(n int) {
	if n <= 0 {
		n = 0 // unlimited
	}
	c := Default()
	var evicted []*entry
	c.mu.Lock()
	c.maxItems = n
	// Trim if needed
	for c.maxItems > 0 && c.order.Len() > c.maxItems {
		evicted = append(evicted, c.evictLRUNoLock())
	}
	fn := c.onEvict
	c.mu.Unlock()
	c.notify(fn, evicted...)
}

func (c *Cache) notify(fn func(string, any), entries ...*entry) {
	if fn == nil {
		return
	}
	for _, e := range entries {
		if e != nil {
			fn(e.key, e.item.V)
		}
	}
}

// removeNoLock removes key from map/list; caller must hold c.mu.
func (c *Cache) removeNoLock(key string) *entry {
	e, ok := c.items[key]
	if !ok {
		return nil
	}
	if e.elem != nil {
		c.order.Remove(e.elem)
	}
	delete(c.items, key)
	return e
}

// evictLRUNoLock removes one LRU entry; caller must hold c.mu.
func (c *Cache) evictLRUNoLock() *entry {
	back := c.order.Back()
	if back == nil {
		return nil
	}
	c.order.Remove(back)
	e, ok := back.Value.(*entry)
	if !ok {
		return nil
	}
	delete(c.items, e.key)
	return e
}
