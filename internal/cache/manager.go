package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// CacheManager composes the memory tier with an optional disk tier.
// Reads check L1 then L2, promoting L2 hits into L1. Writes go to both, so a
// blob rejected by the memory budget can still be served from disk.
type CacheManager struct {
	l1Memory *MemoryCache
	l2Disk   *DiskCache

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates hit counters across tiers.
type ManagerStats struct {
	L1         CacheStats
	L2         CacheStats
	L1Hits     int64
	L2Hits     int64
	Misses     int64
	Promotions int64
	DiskActive bool
}

// NewCacheManager creates a cache manager. The disk tier is enabled only when
// config.DiskPath is set; a locked directory degrades to memory-only.
func NewCacheManager(config *CacheConfig) (*CacheManager, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	cm := &CacheManager{
		l1Memory: NewMemoryCache(config.MemoryCapacity),
	}

	if config.DiskPath != "" {
		disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		switch {
		case errors.Is(err, ErrCacheLocked):
			log.Warn("Disk cache in use by another process, using memory only", "path", config.DiskPath)
		case err != nil:
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		default:
			cm.l2Disk = disk
		}
	}

	return cm, nil
}

// Memory returns the L1 tier.
func (cm *CacheManager) Memory() *MemoryCache {
	return cm.l1Memory
}

// Get retrieves a value from the cache hierarchy.
func (cm *CacheManager) Get(key string) ([]byte, bool) {
	if data, ok := cm.l1Memory.Get(key); ok {
		cm.mu.Lock()
		cm.stats.L1Hits++
		cm.mu.Unlock()
		return data, true
	}

	if cm.l2Disk != nil {
		if data, ok := cm.l2Disk.Get(key); ok {
			cm.mu.Lock()
			cm.stats.L2Hits++
			cm.mu.Unlock()
			cm.promoteToL1(key, data)
			return data, true
		}
	}

	cm.mu.Lock()
	cm.stats.Misses++
	cm.mu.Unlock()
	return nil, false
}

// Put stores a value in every tier. An L1 rejection is not an error.
func (cm *CacheManager) Put(key string, value []byte) error {
	if err := cm.l1Memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}

	if cm.l2Disk != nil {
		if err := cm.l2Disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			return fmt.Errorf("disk cache put: %w", err)
		}
	}
	return nil
}

// Contains reports whether any tier holds key.
func (cm *CacheManager) Contains(key string) bool {
	if cm.l1Memory.Contains(key) {
		return true
	}
	return cm.l2Disk != nil && cm.l2Disk.Contains(key)
}

// Delete removes key from every tier.
func (cm *CacheManager) Delete(key string) error {
	_ = cm.l1Memory.Delete(key)
	if cm.l2Disk != nil {
		return cm.l2Disk.Delete(key)
	}
	return nil
}

// Clear empties every tier.
func (cm *CacheManager) Clear() error {
	_ = cm.l1Memory.Clear()
	if cm.l2Disk != nil {
		return cm.l2Disk.Clear()
	}
	return nil
}

// Stats returns a snapshot of all tiers.
func (cm *CacheManager) Stats() ManagerStats {
	cm.mu.Lock()
	stats := cm.stats
	cm.mu.Unlock()

	stats.L1 = cm.l1Memory.Stats()
	if cm.l2Disk != nil {
		stats.L2 = cm.l2Disk.Stats()
		stats.DiskActive = true
	}
	return stats
}

// Close flushes the disk index and releases its lock.
func (cm *CacheManager) Close() error {
	if cm.l2Disk != nil {
		return cm.l2Disk.Close()
	}
	return nil
}

func (cm *CacheManager) promoteToL1(key string, data []byte) {
	if err := cm.l1Memory.Put(key, data); err != nil {
		return
	}
	cm.mu.Lock()
	cm.stats.Promotions++
	cm.mu.Unlock()
}
