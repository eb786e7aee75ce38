package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/sampledeck/internal/library"
)

// Fetcher returns the raw encoded bytes of a sample.
type Fetcher interface {
	Fetch(ctx context.Context, sample library.Sample) ([]byte, error)
}

// FileFetcher reads samples from the local filesystem.
type FileFetcher struct {
	MaxSize int64
}

// NewFileFetcher creates a FileFetcher limited to library.MaxFileSize.
func NewFileFetcher() *FileFetcher {
	return &FileFetcher{MaxSize: library.MaxFileSize}
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, sample library.Sample) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := sample.Path
	if path == "" {
		path = sample.ID
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", ErrFetch, ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer file.Close() //nolint:errcheck

	blob, err := readLimited(file, f.MaxSize)
	if err != nil && !errors.Is(err, ErrFetch) {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return blob, err
}

// HTTPFetcher downloads samples from a sample server's audio endpoint.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
	MaxSize int64
	Timeout time.Duration

	limiter *rate.Limiter
}

// HTTPFetcherConfig configures NewHTTPFetcher.
type HTTPFetcherConfig struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	// Rate limits requests per second; zero disables limiting.
	Rate float64
	// Burst is the number of requests allowed at once.
	Burst int
}

// NewHTTPFetcher creates a rate-limited HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Client:  client,
		MaxSize: library.MaxFileSize,
		Timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Fetch implements Fetcher. A 404 wraps ErrNotFound; other failures wrap
// ErrNetwork.
func (f *HTTPFetcher) Fetch(ctx context.Context, sample library.Sample) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	u := f.BaseURL + "/api/samples/" + url.PathEscape(sample.ID) + "/audio"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	start := time.Now()
	res, err := f.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrFetch, ErrNetwork, err)
	}
	defer res.Body.Close() //nolint:errcheck

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w: sample %s", ErrFetch, ErrNotFound, sample.ID)
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %w: unexpected status %s", ErrFetch, ErrNetwork, res.Status)
	}
	if f.MaxSize > 0 && res.ContentLength > f.MaxSize {
		return nil, fmt.Errorf("%w: %w", ErrFetch, ErrTooLarge)
	}

	blob, err := readLimited(res.Body, f.MaxSize)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrFetch, ErrNetwork, err)
	}
	log.Debug("Fetched sample", "id", sample.ID, "bytes", len(blob), "took", time.Since(start))
	return blob, nil
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	blob, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(blob)) > max {
		return nil, fmt.Errorf("%w: %w", ErrFetch, ErrTooLarge)
	}
	return blob, nil
}
