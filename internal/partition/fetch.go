package partition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinytelemetry/litclock/internal/model"
)

// maxPartitionBytes bounds a single partition document.
const maxPartitionBytes = 16 << 20

// HTTPFetcher loads partitions from "{base}/{HH}.json?v={version}".
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPFetcher validates base and returns a fetcher. A nil client uses a
// client with a 30s timeout.
func NewHTTPFetcher(base string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/"))
	if err != nil {
		return nil, fmt.Errorf("partition: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("partition: base url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("partition: base url missing host")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

// PartitionURL returns the versioned URL for hourKey.
func (f *HTTPFetcher) PartitionURL(hourKey, version string) string {
	u := *f.base
	u.Path = u.Path + "/" + hourKey + ".json"
	q := u.Query()
	q.Set("v", version)
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch issues the GET. Non-2xx responses and malformed bodies are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, hourKey, version string) (model.QuotePartition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.PartitionURL(hourKey, version), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch hour %s: %w", hourKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch hour %s: unexpected status %d", hourKey, resp.StatusCode)
	}
	return Decode(io.LimitReader(resp.Body, maxPartitionBytes))
}

// DirFetcher loads partitions from "{dir}/{HH}.json". The version token is
// not used because the files are read directly.
type DirFetcher struct {
	Dir string
}

// Fetch reads and decodes one partition file.
func (f DirFetcher) Fetch(_ context.Context, hourKey, _ string) (model.QuotePartition, error) {
	file, err := os.Open(filepath.Join(f.Dir, hourKey+".json"))
	if err != nil {
		return nil, fmt.Errorf("read hour %s: %w", hourKey, err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses a partition document and checks its keys.
func Decode(r io.Reader) (model.QuotePartition, error) {
	var part model.QuotePartition
	if err := json.NewDecoder(r).Decode(&part); err != nil {
		return nil, fmt.Errorf("decode partition: %w", err)
	}
	for key := range part {
		if _, err := model.ParseMinuteKey(key); err != nil {
			return nil, fmt.Errorf("decode partition: %w", err)
		}
	}
	if part == nil {
		part = model.QuotePartition{}
	}
	return part, nil
}

// NewFetcher builds a fetcher from a source string: an http(s) URL, a
// "dir:" prefixed path, or a bare path.
func NewFetcher(source string, client *http.Client) (Fetcher, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, errors.New("partition: empty source")
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return NewHTTPFetcher(source, client)
	case strings.HasPrefix(source, "dir:"):
		return DirFetcher{Dir: strings.TrimPrefix(source, "dir:")}, nil
	default:
		return DirFetcher{Dir: source}, nil
	}
}
