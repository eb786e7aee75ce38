// Package cache provides a two-level cache for raw sample bytes.
// It includes an in-memory LRU cache (L1) bounded by a byte budget and an
// optional persistent disk cache (L2) with zstd compression.
package cache
