package api

import (
	"net/url"
	"sync"
	"time"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

type cachedListing struct {
	entries []models.RemoteFolderEntry
	expires time.Time
}

// responseCache holds recent listings per action and parameters. A zero TTL disables it.
type responseCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cachedListing
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{ttl: ttl, items: make(map[string]cachedListing)}
}

func cacheKey(action string, params url.Values) string {
	if len(params) == 0 {
		return action
	}
	return action + "?" + params.Encode()
}

func (c *responseCache) get(key string, now time.Time) ([]models.RemoteFolderEntry, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !now.Before(item.expires) {
		delete(c.items, key)
		return nil, false
	}
	return cloneEntries(item.entries), true
}

func (c *responseCache) put(key string, entries []models.RemoteFolderEntry, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cachedListing{entries: cloneEntries(entries), expires: now.Add(c.ttl)}
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cachedListing)
}

// cloneEntries copies the slice so callers cannot mutate cached data
func cloneEntries(in []models.RemoteFolderEntry) []models.RemoteFolderEntry {
	out := make([]models.RemoteFolderEntry, len(in))
	copy(out, in)
	return out
}
