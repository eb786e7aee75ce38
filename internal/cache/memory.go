package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// MemoryCache implements an L1 in-memory cache with LRU eviction.
// The sum of live entry sizes never exceeds the configured budget.
type MemoryCache struct {
	capacity int64 // Budget in bytes
	size     int64 // Current size in bytes

	// LRU implementation, front is most recently used
	items    map[string]*list.Element
	eviction *list.List

	mu sync.RWMutex

	stats CacheStats
}

// memoryCacheEntry represents an entry in the memory cache
type memoryCacheEntry struct {
	key        string
	value      []byte
	size       int64
	timestamp  time.Time
	lastAccess time.Time
	hits       int64
}

// NewMemoryCache creates a new memory cache with the specified budget in bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats: CacheStats{
			Capacity: capacity,
		},
	}
}

// Get retrieves a value from the cache and marks it most recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryCacheEntry)
	entry.hits++
	entry.lastAccess = time.Now()

	c.stats.Hits++
	c.stats.LastAccess = entry.lastAccess
	return entry.value, true
}

// Put stores a value in the cache, evicting least recently used entries
// until it fits. A value larger than the whole budget is rejected with
// ErrItemTooLarge and the cache is left untouched.
func (c *MemoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueSize := int64(len(value))

	if valueSize > c.capacity {
		c.stats.Rejections++
		log.Debug("Cache rejected oversized blob",
			"key", key,
			"size", humanize.IBytes(uint64(valueSize)),
			"budget", humanize.IBytes(uint64(c.capacity)))
		return ErrItemTooLarge
	}

	// Drop the stale entry first so its bytes don't count against the budget
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	for c.size+valueSize > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	now := time.Now()
	entry := &memoryCacheEntry{
		key:        key,
		value:      value,
		size:       valueSize,
		timestamp:  now,
		lastAccess: now,
	}

	elem := c.eviction.PushFront(entry)
	c.items[key] = elem
	c.size += valueSize

	c.stats.Size = c.size
	return nil
}

// Delete removes an entry from the cache.
func (c *MemoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil
	}

	c.removeElement(elem)
	c.stats.Size = c.size
	return nil
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
	c.size = 0
	c.stats.Size = 0

	return nil
}

// Size returns the current cache size in bytes.
func (c *MemoryCache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.size
}

// Capacity returns the cache budget in bytes.
func (c *MemoryCache) Capacity() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.capacity
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.Size = c.size
	stats.Capacity = c.capacity
	stats.ItemCount = int64(len(c.items))

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	return stats
}

// Metadata returns metadata for key without updating recency.
func (c *MemoryCache) Metadata(key string) (CacheMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.items[key]
	if !ok {
		return CacheMetadata{}, false
	}
	entry := elem.Value.(*memoryCacheEntry)
	return CacheMetadata{
		Key:        entry.key,
		Size:       entry.size,
		Timestamp:  entry.timestamp,
		LastAccess: entry.lastAccess,
		Hits:       entry.hits,
		Level:      CacheLevelL1,
	}, true
}

// Resize changes the cache budget, evicting entries if it shrank.
func (c *MemoryCache) Resize(newCapacity int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = newCapacity
	c.stats.Capacity = newCapacity

	for c.size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}
	c.stats.Size = c.size
}

// evictOldest removes the least recently used item (must be called with lock held).
func (c *MemoryCache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*memoryCacheEntry)
	c.removeElement(elem)
	c.stats.Evictions++
	c.stats.LastEvict = time.Now()
	log.Debug("Cache evicted entry", "key", entry.key, "size", humanize.IBytes(uint64(entry.size)))
}

// removeElement removes an element from the cache (must be called with lock held).
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryCacheEntry)
	delete(c.items, entry.key)
	c.size -= entry.size
}

// Contains checks if a key exists in the cache without updating LRU.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[key]
	return ok
}

// Keys returns all keys from most to least recently used.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*memoryCacheEntry).key)
	}
	return keys
}
