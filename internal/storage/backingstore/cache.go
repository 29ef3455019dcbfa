package backingstore

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore wraps a Store with a read-through LRU cache over record
// values. Metadata operations pass through uncached; they are rare compared
// to record reads on the hot reopen path.
type CachedStore struct {
	Store

	records *lru.Cache[string, []byte]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedStore wraps s with an LRU record cache of the given size.
func NewCachedStore(s Store, size int) (*CachedStore, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("record cache: %w", err)
	}
	return &CachedStore{Store: s, records: c}, nil
}

func cacheKey(db string, key []byte) string {
	return db + "\x00" + string(key)
}

// GetRecord serves from cache when possible, filling it on a miss.
func (c *CachedStore) GetRecord(db string, key []byte) ([]byte, error) {
	ck := cacheKey(db, key)
	if v, ok := c.records.Get(ck); ok {
		c.hits.Add(1)
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	}
	c.misses.Add(1)

	v, err := c.Store.GetRecord(db, key)
	if err != nil {
		return nil, err
	}
	cached := make([]byte, len(v))
	copy(cached, v)
	c.records.Add(ck, cached)
	return v, nil
}

// PutRecord writes through and refreshes the cached value.
func (c *CachedStore) PutRecord(db string, key, value []byte) error {
	if err := c.Store.PutRecord(db, key, value); err != nil {
		return err
	}
	cached := make([]byte, len(value))
	copy(cached, value)
	c.records.Add(cacheKey(db, key), cached)
	return nil
}

// DeleteRecord writes through and invalidates the cached value.
func (c *CachedStore) DeleteRecord(db string, key []byte) error {
	if err := c.Store.DeleteRecord(db, key); err != nil {
		return err
	}
	c.records.Remove(cacheKey(db, key))
	return nil
}

// DeleteDatabase writes through and drops every cached record of db.
func (c *CachedStore) DeleteDatabase(name string) error {
	if err := c.Store.DeleteDatabase(name); err != nil {
		return err
	}
	prefix := name + "\x00"
	for _, k := range c.records.Keys() {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.records.Remove(k)
		}
	}
	return nil
}

// Close purges the cache and closes the underlying store.
func (c *CachedStore) Close() error {
	c.records.Purge()
	return c.Store.Close()
}

// CacheStats returns cache hit and miss counts.
func (c *CachedStore) CacheStats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// WrapCache applies the configured record cache to a freshly opened store.
// Drivers call this before handing the store to the engine.
func WrapCache(s Store, opts Options) (Store, error) {
	if opts.CacheSize <= 0 {
		return s, nil
	}
	return NewCachedStore(s, opts.CacheSize)
}
