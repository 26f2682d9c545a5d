package blogsync

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = sql.ErrNoRows

// entryLister is the part of Store the cache reads from.
type entryLister interface {
	ListEntries(ctx context.Context) ([]BlogEntry, error)
}

// EntryCache is an in-memory cache of synced entries with a TTL. The runner
// invalidates it after every pass that wrote to the store.
type EntryCache struct {
	mu      sync.RWMutex
	entries []BlogEntry
	fetched time.Time
	ttl     time.Duration
	store   entryLister
}

// NewEntryCache creates an EntryCache backed by the given store.
func NewEntryCache(s entryLister, ttl time.Duration) *EntryCache {
	return &EntryCache{store: s, ttl: ttl}
}

func (c *EntryCache) valid() bool {
	return c.entries != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *EntryCache) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// ensureLoaded returns cached entries after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *EntryCache) ensureLoaded(ctx context.Context) ([]BlogEntry, error) {
	c.mu.RLock()
	if c.valid() {
		entries := c.entries
		c.mu.RUnlock()
		return entries, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.entries, nil
	}
	entries, err := c.store.ListEntries(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []BlogEntry{}
	}
	c.entries = entries
	c.fetched = time.Now()
	return c.entries, nil
}

// ListEntries returns all entries, optionally filtered by tag.
func (c *EntryCache) ListEntries(ctx context.Context, tag string) ([]BlogEntry, error) {
	entries, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return entries, nil
	}
	normalized := normalizeTag(tag)
	filtered := []BlogEntry{}
	for _, e := range entries {
		for _, t := range e.Tags {
			if normalizeTag(t) == normalized {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered, nil
}

// GetEntry returns a single entry by slug from the cache.
func (c *EntryCache) GetEntry(ctx context.Context, slug string) (BlogEntry, error) {
	entries, err := c.ensureLoaded(ctx)
	if err != nil {
		return BlogEntry{}, err
	}
	for _, e := range entries {
		if e.Slug == slug {
			return e, nil
		}
	}
	return BlogEntry{}, ErrNotFound
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
