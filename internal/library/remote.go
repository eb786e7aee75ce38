package library

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultPageSize matches the server's default page size.
const DefaultPageSize = 100

// RemoteLibrary lists samples from a sample server's /api/samples endpoint.
type RemoteLibrary struct {
	BaseURL  string
	PageSize int
	Client   *http.Client
}

// NewRemoteLibrary creates a library for the server at baseURL.
func NewRemoteLibrary(baseURL string, client *http.Client) *RemoteLibrary {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteLibrary{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PageSize: DefaultPageSize,
		Client:   client,
	}
}

type remoteTag struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type remoteSample struct {
	ID       int         `json:"id"`
	Filepath string      `json:"filepath"`
	Filename string      `json:"filename"`
	FileSize int64       `json:"file_size"`
	Format   string      `json:"format"`
	Duration float64     `json:"duration"`
	Tags     []remoteTag `json:"tags"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type listResponse struct {
	Samples    []remoteSample `json:"samples"`
	Pagination pagination     `json:"pagination"`
}

// List fetches every page of samples.
func (r *RemoteLibrary) List(ctx context.Context) ([]Sample, error) {
	var samples []Sample
	for page := 1; ; page++ {
		resp, err := r.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, s := range resp.Samples {
			samples = append(samples, s.toSample())
		}
		if page >= resp.Pagination.Pages || len(resp.Samples) == 0 {
			break
		}
	}
	log.Debug("Remote sample listing finished", "url", r.BaseURL, "samples", len(samples))
	return samples, nil
}

// AudioURL returns the URL serving the bytes of the sample with id.
func (r *RemoteLibrary) AudioURL(id string) string {
	return r.BaseURL + "/api/samples/" + url.PathEscape(id) + "/audio"
}

func (r *RemoteLibrary) fetchPage(ctx context.Context, page int) (*listResponse, error) {
	limit := r.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	u := r.BaseURL + "/api/samples?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list samples: unexpected status %s", res.Status)
	}

	var out listResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sample list: %w", err)
	}
	return &out, nil
}

func (s remoteSample) toSample() Sample {
	format := strings.ToLower(s.Format)
	if format == "" {
		format = FormatOf(s.Filename)
	}
	tags := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		tags = append(tags, t.Name)
	}
	return Sample{
		ID:       strconv.Itoa(s.ID),
		Filename: s.Filename,
		Format:   format,
		Size:     s.FileSize,
		Duration: time.Duration(s.Duration * float64(time.Second)),
		Tags:     tags,
	}
}
