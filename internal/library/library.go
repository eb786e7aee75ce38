// Package library lists the samples a user can select, either from a local
// folder or from a sample server.
package library

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// MaxFileSize is the largest sample accepted for playback.
const MaxFileSize = 500 * 1024 * 1024

// AudioExtensions are the file extensions treated as samples.
var AudioExtensions = []string{".wav", ".mp3", ".flac", ".aiff", ".ogg", ".m4a"}

// Sample is one selectable audio file.
type Sample struct {
	ID       string        // Stable identifier; the server id or the absolute path
	Filename string        // Base name for display
	Path     string        // Local path, empty for remote samples
	Format   string        // Lowercase extension without the dot
	Size     int64         // Bytes, 0 when unknown
	Duration time.Duration // 0 when unknown
	Tags     []string
}

// Key returns the cache key for the sample's bytes.
func (s Sample) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Path
}

// Library lists samples.
type Library interface {
	List(ctx context.Context) ([]Sample, error)
}

// IsAudioFile reports whether name has a sample extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FormatOf returns the sample format derived from name.
func FormatOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

func globPatterns() []string {
	patterns := make([]string, 0, len(AudioExtensions)*2)
	for _, ext := range AudioExtensions {
		patterns = append(patterns, "*"+ext, "*"+strings.ToUpper(ext))
	}
	return patterns
}
