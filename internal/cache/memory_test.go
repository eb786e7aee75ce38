package cache

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	key := "kick-01.wav"
	value := []byte("RIFF....WAVE")

	if err := cache.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if !bytes.Equal(retrieved, value) {
		t.Errorf("Retrieved value mismatch: got %s, want %s", retrieved, value)
	}

	if !cache.Contains(key) {
		t.Error("Contains returned false for existing key")
	}

	if cache.Size() != int64(len(value)) {
		t.Errorf("Size mismatch: got %d, want %d", cache.Size(), len(value))
	}

	if err := cache.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if cache.Contains(key) {
		t.Error("Key still exists after delete")
	}
	if cache.Size() != 0 {
		t.Errorf("Size not zero after delete: %d", cache.Size())
	}
}

func TestMemoryCache_EvictsOldestToFit(t *testing.T) {
	// budget = 10; put a(6); put b(6) -> a evicted
	cache := NewMemoryCache(10)

	if err := cache.Put("a", make([]byte, 6)); err != nil {
		t.Fatalf("Put a failed: %v", err)
	}
	if err := cache.Put("b", make([]byte, 6)); err != nil {
		t.Fatalf("Put b failed: %v", err)
	}

	if cache.Contains("a") {
		t.Error("a should have been evicted")
	}
	if !cache.Contains("b") {
		t.Error("b should be cached")
	}

	stats := cache.Stats()
	if stats.ItemCount != 1 || stats.Size != 6 || stats.Capacity != 10 {
		t.Errorf("Unexpected stats: count=%d size=%d budget=%d", stats.ItemCount, stats.Size, stats.Capacity)
	}
	if stats.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := cache.Put(key, make([]byte, 20)); err != nil {
			t.Fatalf("Put failed for key %s: %v", key, err)
		}
	}

	// Access key-0 and key-1 to make them recently used
	cache.Get("key-0")
	cache.Get("key-1")

	// 30 bytes needs exactly two 20-byte evictions: key-2 and key-3
	if err := cache.Put("key-new", make([]byte, 30)); err != nil {
		t.Fatalf("Put failed for new key: %v", err)
	}

	for _, evicted := range []string{"key-2", "key-3"} {
		if cache.Contains(evicted) {
			t.Errorf("%s should have been evicted", evicted)
		}
	}
	for _, kept := range []string{"key-0", "key-1", "key-4", "key-new"} {
		if !cache.Contains(kept) {
			t.Errorf("%s should not have been evicted", kept)
		}
	}

	if got := cache.Stats().Evictions; got != 2 {
		t.Errorf("Expected exactly 2 evictions, got %d", got)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(100)
	if err := cache.Put("small", make([]byte, 10)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := cache.Put("large-key", make([]byte, 200))
	if !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}

	if _, ok := cache.Get("large-key"); ok {
		t.Error("Oversized blob should not be retrievable")
	}
	if !cache.Contains("small") {
		t.Error("Rejected put must not evict existing entries")
	}
	if got := cache.Stats().Rejections; got != 1 {
		t.Errorf("Expected 1 rejection, got %d", got)
	}
}

func TestMemoryCache_ExactBudgetAdmitted(t *testing.T) {
	cache := NewMemoryCache(64)

	if err := cache.Put("full", make([]byte, 64)); err != nil {
		t.Fatalf("Blob equal to budget should be admitted: %v", err)
	}
	if cache.Size() != 64 {
		t.Errorf("Size mismatch: got %d, want 64", cache.Size())
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	cache := NewMemoryCache(20)

	if err := cache.Put("snare", make([]byte, 8)); err != nil {
		t.Fatalf("First Put failed: %v", err)
	}
	if err := cache.Put("hat", make([]byte, 8)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Replacing snare with 12 bytes fits only if the stale 8 bytes are dropped first
	updated := bytes.Repeat([]byte{1}, 12)
	if err := cache.Put("snare", updated); err != nil {
		t.Fatalf("Update Put failed: %v", err)
	}

	retrieved, ok := cache.Get("snare")
	if !ok {
		t.Fatal("Key not found after update")
	}
	if !bytes.Equal(retrieved, updated) {
		t.Error("Value not updated")
	}
	if !cache.Contains("hat") {
		t.Error("hat should survive: 8 + 12 fits the budget")
	}
	if cache.Size() != 20 {
		t.Errorf("Size mismatch: got %d, want 20", cache.Size())
	}
}

func TestMemoryCache_BudgetInvariant(t *testing.T) {
	const budget = 1000
	cache := NewMemoryCache(budget)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("sample-%d", rng.Intn(50))
		size := rng.Intn(1200)
		value := make([]byte, size)
		value = append(value[:0], bytes.Repeat([]byte{byte(i)}, size)...)

		err := cache.Put(key, value)
		if size > budget {
			if !errors.Is(err, ErrItemTooLarge) {
				t.Fatalf("step %d: expected rejection for %d bytes, got %v", i, size, err)
			}
		} else {
			if err != nil {
				t.Fatalf("step %d: Put failed: %v", i, err)
			}
			got, ok := cache.Get(key)
			if !ok || !bytes.Equal(got, value) {
				t.Fatalf("step %d: Get after Put returned different blob", i)
			}
		}

		var sum int64
		for _, k := range cache.Keys() {
			meta, ok := cache.Metadata(k)
			if !ok {
				t.Fatalf("step %d: key %s listed but missing", i, k)
			}
			sum += meta.Size
		}
		if sum > budget || sum != cache.Size() {
			t.Fatalf("step %d: live sum %d, tracked %d, budget %d", i, sum, cache.Size(), budget)
		}
		if rng.Intn(4) == 0 {
			cache.Get(fmt.Sprintf("sample-%d", rng.Intn(50)))
		}
	}
}

func TestMemoryCache_MostRecentSurvives(t *testing.T) {
	cache := NewMemoryCache(30)

	cache.Put("a", make([]byte, 10))
	cache.Put("b", make([]byte, 10))
	cache.Put("c", make([]byte, 10))
	cache.Get("a")

	cache.Put("d", make([]byte, 10))

	keys := cache.Keys()
	if len(keys) != 3 || keys[0] != "d" || keys[1] != "a" {
		t.Errorf("Unexpected recency order: %v", keys)
	}
	if cache.Contains("b") {
		t.Error("b was least recently used and should be gone")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(1024)

	for i := 0; i < 5; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if cache.Size() != 0 {
		t.Errorf("Size not zero after clear: %d", cache.Size())
	}
	if stats := cache.Stats(); stats.ItemCount != 0 {
		t.Errorf("ItemCount not zero after clear: %d", stats.ItemCount)
	}
	for i := 0; i < 5; i++ {
		if cache.Contains(fmt.Sprintf("key-%d", i)) {
			t.Errorf("key-%d still exists after clear", i)
		}
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(1024)

	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Error("Initial stats should be zero")
	}

	cache.Put("key1", []byte("value1"))
	cache.Get("key1") // Hit
	cache.Get("key2") // Miss

	stats = cache.Stats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestMemoryCache_ContainsDoesNotTouchRecency(t *testing.T) {
	cache := NewMemoryCache(20)

	cache.Put("a", make([]byte, 10))
	cache.Put("b", make([]byte, 10))
	cache.Contains("a")
	cache.Put("c", make([]byte, 10))

	if cache.Contains("a") {
		t.Error("Contains must not refresh recency")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(2048)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("writer-%d-key-%d", id, j)
				if err := cache.Put(key, make([]byte, 64)); err != nil {
					errs <- fmt.Errorf("writer %d: %v", id, err)
				}
				if cache.Size() > 2048 {
					errs <- fmt.Errorf("budget exceeded: %d", cache.Size())
				}
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cache.Get(fmt.Sprintf("writer-%d-key-%d", id, j))
			}
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case err := <-errs:
		t.Fatal(err)
	case <-time.After(5 * time.Second):
		t.Fatal("Test timed out")
	}
}

func TestMemoryCache_Resize(t *testing.T) {
	cache := NewMemoryCache(100)

	for i := 0; i < 5; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), make([]byte, 20))
	}

	cache.Resize(50)
	if cache.Size() > 50 {
		t.Errorf("Size exceeds new capacity: %d > 50", cache.Size())
	}
	if !cache.Contains("key-4") {
		t.Error("Most recent entry should survive a shrink")
	}

	cache.Resize(200)
	if err := cache.Put("new-key", make([]byte, 100)); err != nil {
		t.Errorf("Failed to add item after resize: %v", err)
	}
}

func BenchmarkMemoryCache_Put(b *testing.B) {
	cache := NewMemoryCache(1024 * 1024)
	value := make([]byte, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), value)
	}
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	cache := NewMemoryCache(1024 * 1024)

	for i := 0; i < 1000; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), make([]byte, 100))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cache.Get(fmt.Sprintf("key-%d", i%1000))
	}
}
