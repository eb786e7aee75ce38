package playback

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/sampledeck/internal/library"
)

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clap.wav")
	want := []byte("RIFF0000WAVE")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	f := NewFileFetcher()
	got, err := f.Fetch(context.Background(), library.Sample{ID: path, Path: path})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Fetched %q, want %q", got, want)
	}

	_, err = f.Fetch(context.Background(), library.Sample{Path: filepath.Join(dir, "gone.wav")})
	if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrFetch and ErrNotFound, got %v", err)
	}

	f.MaxSize = 4
	if _, err := f.Fetch(context.Background(), library.Sample{Path: path}); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Expected ErrTooLarge, got %v", err)
	}
}

func TestFileFetcher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileFetcher().Fetch(ctx, library.Sample{Path: "x.wav"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	body := bytes.Repeat([]byte{7}, 100)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/samples/7/audio":
			_, _ = w.Write(body)
		case "/api/samples/8/audio":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{BaseURL: server.URL + "/", Client: server.Client(), Rate: 100, Burst: 10})

	got, err := f.Fetch(context.Background(), library.Sample{ID: "7"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("Fetched %d bytes, want %d", len(got), len(body))
	}

	tests := []struct {
		name    string
		id      string
		maxSize int64
		want    error
	}{
		{"not found", "9", 0, ErrNotFound},
		{"server error", "8", 0, ErrNetwork},
		{"too large", "7", 10, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.MaxSize = tt.maxSize
			_, err := f.Fetch(context.Background(), library.Sample{ID: tt.id})
			if !errors.Is(err, ErrFetch) || !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHTTPFetcher_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{BaseURL: url})
	if _, err := f.Fetch(context.Background(), library.Sample{ID: "1"}); !errors.Is(err, ErrNetwork) {
		t.Errorf("Expected ErrNetwork, got %v", err)
	}
}
