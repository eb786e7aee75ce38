package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
)

// LocalLibrary discovers samples below a directory.
type LocalLibrary struct {
	Root string
	// ShowAll bypasses .gitignore rules.
	ShowAll bool
	// Ignore holds extra glob patterns to skip.
	Ignore []string
}

// NewLocalLibrary creates a library rooted at root.
func NewLocalLibrary(root string) *LocalLibrary {
	return &LocalLibrary{Root: root}
}

// List walks Root and returns every sample sorted by path.
func (l *LocalLibrary) List(ctx context.Context) ([]Sample, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", root)
	}

	var ch chan gitcha.SearchResult
	if l.ShowAll {
		ch, err = gitcha.FindAllFilesExcept(root, globPatterns(), l.Ignore)
	} else {
		ch, err = gitcha.FindFilesExcept(root, globPatterns(), l.Ignore)
	}
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", root, err)
	}

	var samples []Sample
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			go drainResults(ch)
			return nil, ctx.Err()
		case res, ok := <-ch:
			if !ok {
				sort.Slice(samples, func(i, j int) bool { return samples[i].Path < samples[j].Path })
				log.Debug("Local sample search finished", "root", root, "samples", len(samples))
				return samples, nil
			}
			if res.Info == nil || res.Info.IsDir() || !IsAudioFile(res.Path) || seen[res.Path] {
				continue
			}
			seen[res.Path] = true
			samples = append(samples, localSample(res))
		}
	}
}

func localSample(res gitcha.SearchResult) Sample {
	return Sample{
		ID:       res.Path,
		Filename: filepath.Base(res.Path),
		Path:     res.Path,
		Format:   FormatOf(res.Path),
		Size:     res.Info.Size(),
	}
}

// drainResults lets gitcha's walker finish after a cancelled search.
func drainResults(ch chan gitcha.SearchResult) {
	for range ch { //nolint:revive
	}
}
