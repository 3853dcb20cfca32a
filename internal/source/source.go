// Package source fetches the initial trip and event dataset a fresh session
// is built from.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// ErrFetch wraps every failure to obtain or decode the initial dataset.
var ErrFetch = errors.New("fetch dataset")

// Source delivers the initial dataset.
type Source interface {
	Fetch(ctx context.Context) (*model.Dataset, error)
}

// FileSource reads the dataset from a local JSON file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer f.Close()
	return decode(f)
}

// HTTPSource GETs the dataset from a URL.
type HTTPSource struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPSource creates an HTTPSource with a bounded request timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (*model.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: HTTP %d: %s", ErrFetch, s.URL, resp.StatusCode, body)
	}
	return decode(resp.Body)
}

func decode(r io.Reader) (*model.Dataset, error) {
	var d model.Dataset
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetch, err)
	}
	if err := model.ValidateDataset(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	d.Trips = model.NormalizeTrips(d.Trips)
	if d.Events == nil {
		d.Events = []model.Event{}
	}
	return &d, nil
}
