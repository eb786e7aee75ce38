package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when a blob exceeds the cache budget on its
	// own. It is a rejection, not a failure: callers re-fetch on next access.
	ErrItemTooLarge = errors.New("item too large for cache")
)

// CacheLevel represents the cache tier
type CacheLevel int

const (
	// CacheLevelL1 represents the memory cache (fastest)
	CacheLevelL1 CacheLevel = iota

	// CacheLevelL2 represents the disk cache (persistent)
	CacheLevelL2
)

// String returns the string representation of the cache level
func (l CacheLevel) String() string {
	switch l {
	case CacheLevelL1:
		return "L1-Memory"
	case CacheLevelL2:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// CacheStats holds cache performance metrics
type CacheStats struct {
	// Configuration
	Capacity int64 // Budget in bytes

	// Current state
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	// Performance metrics
	Hits       int64   // Number of cache hits
	Misses     int64   // Number of cache misses
	Evictions  int64   // Number of evictions
	Rejections int64   // Number of blobs refused for being over budget
	HitRate    float64 // Calculated hit rate (hits / (hits + misses))

	LastAccess time.Time // Last access time
	LastEvict  time.Time // Last eviction time
}

// CacheMetadata contains metadata about a cached item
type CacheMetadata struct {
	Key        string     // Cache key
	Size       int64      // Size in bytes
	Timestamp  time.Time  // When item was cached
	LastAccess time.Time  // Last access time
	Hits       int64      // Number of times accessed
	Level      CacheLevel // Which cache level this is from
}

// CacheConfig holds configuration for cache instances
type CacheConfig struct {
	// Memory cache (L1)
	MemoryCapacity int64 // Bytes

	// Disk cache (L2), disabled when DiskPath is empty
	DiskCapacity     int64  // Bytes
	DiskPath         string // Directory for cache files
	CompressionLevel int    // Zstd compression level (1-22, 0 disables)
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MemoryCapacity:   100 * 1024 * 1024,  // 100MB
		DiskCapacity:     1024 * 1024 * 1024, // 1GB
		CompressionLevel: 3,
	}
}

// Cache is implemented by both tiers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error

	Size() int64
	Contains(key string) bool

	Stats() CacheStats
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*DiskCache)(nil)
)
