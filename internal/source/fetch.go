// Package source fetches the upstream data that tiles display. Every source
// has a stub twin so preview renders never touch the network.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rook-computer/inkpanel/internal/cache"
)

// ErrNoData is returned when an upstream answers with nothing usable.
var ErrNoData = errors.New("no data")

const (
	userAgent    = "inkpanel/1.0"
	maxBodyBytes = 4 << 20
)

// Fetcher performs GET requests with retries and caches decoded bodies.
type Fetcher struct {
	client *retryablehttp.Client
	cache  cache.Cache
}

type FetcherOption func(*Fetcher)

// WithRetry sets the retry count and the per-attempt timeout.
func WithRetry(retryMax int, timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.RetryMax = retryMax
		if timeout > 0 {
			f.client.HTTPClient.Timeout = timeout
		}
	}
}

// WithRetryWait bounds the backoff between attempts.
func WithRetryWait(minWait, maxWait time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.RetryWaitMin = minWait
		f.client.RetryWaitMax = maxWait
	}
}

// NewFetcher returns a Fetcher backed by c. A nil cache disables caching.
func NewFetcher(c cache.Cache, opts ...FetcherOption) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	if c == nil {
		c = cache.Null{}
	}
	f := &Fetcher{client: client, cache: c}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// JSON decodes the body at url into v. Fresh cached bodies are used without
// a request; successful bodies are cached for ttl. Empty bodies, null and
// empty objects or arrays are ErrNoData.
func (f *Fetcher) JSON(ctx context.Context, url string, ttl time.Duration, v any) error {
	key := cache.Key("http", url)
	if ttl > 0 {
		if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
			if err := json.Unmarshal(data, v); err == nil {
				return nil
			}
		}
	}

	data, err := f.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if isEmptyJSON(data) {
		return fmt.Errorf("%w: %s", ErrNoData, url)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	if ttl > 0 {
		// A cache that cannot store is not worth failing the tile over.
		_ = f.cache.Put(ctx, key, data, ttl)
	}
	return nil
}

// Bytes returns the raw body at url, asking for the given media type.
// Caching follows JSON; a blank body is ErrNoData.
func (f *Fetcher) Bytes(ctx context.Context, url, accept string, ttl time.Duration) ([]byte, error) {
	key := cache.Key("http", accept, url)
	if ttl > 0 {
		if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
			return data, nil
		}
	}
	data, err := f.get(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, url)
	}
	if ttl > 0 {
		_ = f.cache.Put(ctx, key, data, ttl)
	}
	return data, nil
}

func (f *Fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

func isEmptyJSON(data []byte) bool {
	switch string(bytes.TrimSpace(data)) {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}
