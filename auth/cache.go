package auth

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CacheKey deterministically identifies a cache slot. Credentials built from
// the same authority, client id, and scope set share a slot, so a refresh
// observed through one clone is visible to the others.
type CacheKey string

// NewCacheKey derives the cache key for a credential's parameters. Scope
// order is irrelevant.
func NewCacheKey(authority Authority, clientID string, scopes []string) CacheKey {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	parts := []string{authority.base(), clientID, strings.Join(sorted, " ")}
	return CacheKey(strings.Join(parts, "|"))
}

// TokenCache is a process-wide token store. Reads take a shared lock and
// writes an exclusive one; the critical section covers only the map access,
// never network I/O. Refreshes for the same key are collapsed through a
// single-flight group.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[CacheKey]*Token

	// group serializes concurrent acquisitions per cache key.
	group singleflight.Group
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{entries: make(map[CacheKey]*Token)}
}

// sharedCache backs credentials that were not given a cache of their own.
var sharedCache = NewTokenCache()

// Get returns the cached token for key, expired or not.
func (c *TokenCache) Get(key CacheKey) (*Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.entries[key]
	return tok, ok
}

// Put stores a token under key, replacing any previous entry.
func (c *TokenCache) Put(key CacheKey, tok *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tok
}

// Evict removes the entry for key.
func (c *TokenCache) Evict(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// acquire runs fetch under the key's single-flight slot. Concurrent callers
// that observe an expired token block on the one in-flight fetch and then
// read its result.
func (c *TokenCache) acquire(key CacheKey, fetch func() (*Token, error)) (*Token, error) {
	v, err, _ := c.group.Do(string(key), func() (any, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}
