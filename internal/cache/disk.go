package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/klauspost/compress/zstd"
)

// ErrCacheLocked is returned when another process owns the cache directory.
var ErrCacheLocked = errors.New("disk cache is locked by another process")

const (
	indexFileName = "cache.index"
	lockFileName  = "cache.lock"
)

// DiskCache implements an L2 disk-based cache with optional compression.
// It keeps fetched sample bytes across sessions. The directory is owned by a
// single process at a time through an advisory file lock.
type DiskCache struct {
	basePath string
	capacity int64 // Maximum size on disk in bytes
	size     int64 // Current size on disk in bytes

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	lock *flock.Flock

	index map[string]*diskCacheEntry

	mu sync.RWMutex

	stats CacheStats
}

// diskCacheEntry represents an entry in the disk cache index
type diskCacheEntry struct {
	Key          string
	FilePath     string
	Size         int64 // Size on disk (compressed)
	OriginalSize int64 // Original size (uncompressed)
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskCache opens (or creates) a disk cache rooted at basePath. A
// compressionLevel of 0 stores blobs as-is.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	lock := flock.New(filepath.Join(basePath, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock cache directory: %w", err)
	}
	if !locked {
		return nil, ErrCacheLocked
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		lock:     lock,
		index:    make(map[string]*diskCacheEntry),
		stats: CacheStats{
			Capacity: capacity,
		},
	}

	if compressionLevel > 0 {
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		dc.decoder, err = zstd.NewReader(nil)
		if err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	if err := dc.loadIndex(); err != nil {
		log.Warn("Discarding unreadable disk cache index", "path", basePath, "error", err)
		dc.index = make(map[string]*diskCacheEntry)
	}
	dc.calculateSize()

	return dc, nil
}

// Get retrieves a value from the disk cache.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		dc.dropEntry(entry)
		dc.stats.Misses++
		return nil, false
	}

	if entry.Compressed {
		if dc.decoder == nil {
			dc.dropEntry(entry)
			dc.stats.Misses++
			return nil, false
		}
		decompressed, err := dc.decoder.DecodeAll(data, nil)
		if err != nil {
			log.Warn("Corrupted disk cache entry", "key", key, "error", err)
			dc.dropEntry(entry)
			dc.stats.Misses++
			return nil, false
		}
		data = decompressed
	}

	entry.LastAccess = time.Now()
	entry.Hits++

	dc.stats.Hits++
	dc.stats.LastAccess = entry.LastAccess

	return data, true
}

// Put stores a value in the disk cache.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	originalSize := int64(len(value))

	dataToWrite := value
	compressed := false
	if dc.encoder != nil && originalSize > 1024 {
		compressedData := dc.encoder.EncodeAll(value, nil)
		// Encoded formats like mp3 and flac rarely shrink
		if len(compressedData) < len(value) {
			dataToWrite = compressedData
			compressed = true
		}
	}

	diskSize := int64(len(dataToWrite))
	if diskSize > dc.capacity {
		dc.stats.Rejections++
		return ErrItemTooLarge
	}

	if existing, ok := dc.index[key]; ok {
		dc.dropEntry(existing)
	}

	for dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	filePath := dc.generateFilePath(key)
	if err := dc.writeFile(filePath, dataToWrite); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskCacheEntry{
		Key:          key,
		FilePath:     filePath,
		Size:         diskSize,
		OriginalSize: originalSize,
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize

	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))

	return nil
}

// Delete removes an entry from the disk cache.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.index[key]; ok {
		dc.dropEntry(entry)
	}
	return nil
}

// Clear removes all entries from the disk cache.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		_ = os.Remove(entry.FilePath)
	}

	dc.index = make(map[string]*diskCacheEntry)
	dc.size = 0
	dc.stats.Size = 0
	dc.stats.ItemCount = 0

	return dc.saveIndex()
}

// Size returns the current on-disk size in bytes.
func (dc *DiskCache) Size() int64 {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	return dc.size
}

// Contains checks if a key exists in the cache without updating access time.
func (dc *DiskCache) Contains(key string) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	_, ok := dc.index[key]
	return ok
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() CacheStats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	stats := dc.stats
	stats.Size = dc.size
	stats.ItemCount = int64(len(dc.index))

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	return stats
}

// Close saves the index and releases the directory lock.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	err := dc.saveIndex()
	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	if dc.decoder != nil {
		dc.decoder.Close()
	}
	if unlockErr := dc.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

func (dc *DiskCache) generateFilePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(dc.basePath, hex.EncodeToString(hash[:16])+".cache")
}

func (dc *DiskCache) writeFile(path string, data []byte) error {
	// Write to temp file first, then rename (atomic on most systems)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	closeErr := file.Close()

	if err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, path)
}

// dropEntry removes an entry and its file (must be called with lock held).
func (dc *DiskCache) dropEntry(entry *diskCacheEntry) {
	_ = os.Remove(entry.FilePath)
	delete(dc.index, entry.Key)
	dc.size -= entry.Size
	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))
}

// evictOldest drops the entry with the oldest access time. The index is a
// map, so this is a linear scan; disk tiers hold few enough entries.
func (dc *DiskCache) evictOldest() {
	var oldest *diskCacheEntry
	for _, entry := range dc.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}

	if oldest != nil {
		dc.dropEntry(oldest)
		dc.stats.Evictions++
		dc.stats.LastEvict = time.Now()
	}
}

func (dc *DiskCache) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close() //nolint:errcheck

	if err := gob.NewDecoder(file).Decode(&dc.index); err != nil {
		return err
	}

	// Forget entries whose files vanished or that can no longer be decoded
	for key, entry := range dc.index {
		if _, err := os.Stat(entry.FilePath); err != nil || (entry.Compressed && dc.decoder == nil) {
			delete(dc.index, key)
		}
	}
	return nil
}

func (dc *DiskCache) saveIndex() error {
	indexPath := filepath.Join(dc.basePath, indexFileName)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()

	if err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	if closeErr != nil {
		_ = os.Remove(tempPath)
		return closeErr
	}

	return os.Rename(tempPath, indexPath)
}

func (dc *DiskCache) calculateSize() {
	dc.size = 0
	for _, entry := range dc.index {
		dc.size += entry.Size
	}
	dc.stats.Size = dc.size
	dc.stats.ItemCount = int64(len(dc.index))
}
