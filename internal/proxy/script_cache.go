package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"plausible-bridge/internal/model"
)

// maxScriptSize guards against unexpected upstream responses.
const maxScriptSize = 1 << 20

// Script is a cached upstream script body.
type Script struct {
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// ScriptCache fetches tracking scripts from upstream and keeps them for TTL.
type ScriptCache struct {
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]Script
}

// NewScriptCache creates a cache. A non-positive ttl disables caching.
func NewScriptCache(httpClient *http.Client, ttl time.Duration) *ScriptCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: ForwardTimeout}
	}
	return &ScriptCache{
		httpClient: httpClient,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]Script),
	}
}

// Get returns the script at url, from cache when fresh.
func (c *ScriptCache) Get(ctx context.Context, url string) (Script, error) {
	c.mu.Lock()
	entry, ok := c.entries[url]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.FetchedAt) < c.ttl {
		return entry, nil
	}

	fetched, err := c.fetch(ctx, url)
	if err != nil {
		// Serve stale content rather than break the page.
		if ok {
			return entry, nil
		}
		return Script{}, err
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[url] = fetched
		c.mu.Unlock()
	}
	return fetched, nil
}

func (c *ScriptCache) fetch(ctx context.Context, url string) (Script, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Script{}, fmt.Errorf("creating script request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Script{}, model.NewRemoteUnavailableError("script host", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Script{}, model.NewNotFoundError("script")
	}
	if resp.StatusCode >= 400 {
		return Script{}, model.NewRemoteUnavailableError("script host", fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
	if err != nil {
		return Script{}, model.NewRemoteUnavailableError("script host", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/javascript"
	}
	return Script{Body: body, ContentType: ct, FetchedAt: c.now()}, nil
}
