package authflow

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cache slot. Tokens for different flows, tenants,
// clients or scopes never alias each other.
type Key struct {
	Flow     FlowType
	Tenant   string
	ClientID string
	Scope    string
}

// String renders the key for use with singleflight.
func (k Key) String() string {
	return string(k.Flow) + "|" + k.Tenant + "|" + k.ClientID + "|" + k.Scope
}

// Cache holds at most one valid token per key and coordinates refreshes so
// that concurrent callers for the same key trigger a single network call.
// Construct one per process and inject it; there is no package-level
// instance. Lifetime is tied to the process, nothing is persisted.
type Cache struct {
	mu     sync.RWMutex
	tokens map[Key]*Token

	// group deduplicates concurrent refreshes per key. Unrelated keys
	// proceed independently; there is no cache-wide lock around network
	// calls.
	group singleflight.Group

	now func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock sets the time source used for validity checks. Intended
// for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an empty token cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		tokens: make(map[Key]*Token),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached token for key if one exists and is still valid
// under the expiry skew margin.
func (c *Cache) Get(key Key) (*Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tok, ok := c.tokens[key]
	if !ok || !tok.ValidAt(c.now()) {
		return nil, false
	}
	return tok, true
}

// Put replaces the slot for key. Readers observe either the previous token
// or the new one, never a partial update.
func (c *Cache) Put(key Key, tok *Token) {
	c.mu.Lock()
	c.tokens[key] = tok
	c.mu.Unlock()
}

// Invalidate drops the slot for key.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
}

// GetOrRefresh returns the cached token for key, or invokes refresh to
// obtain a fresh one. At most one refresh per key is in flight at any
// instant: concurrent callers for the same key wait on the single in-flight
// call and all receive its token or its error. A failed refresh leaves the
// slot untouched, so the next call simply retries from scratch.
func (c *Cache) GetOrRefresh(ctx context.Context, key Key, refresh func(context.Context) (*Token, error)) (*Token, error) {
	if tok, ok := c.Get(key); ok {
		return tok, nil
	}

	result, err, _ := c.group.Do(key.String(), func() (any, error) {
		// Double-check after winning the flight; a refresh that finished
		// while this caller waited may have populated the slot.
		if tok, ok := c.Get(key); ok {
			return tok, nil
		}

		tok, err := refresh(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, tok)
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}
