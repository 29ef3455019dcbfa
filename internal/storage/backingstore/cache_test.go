package backingstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapStore is a trivial in-memory Store used to observe cache behavior.
type mapStore struct {
	data  map[string][]byte
	reads int
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) DatabaseNames() ([]string, error)            { return nil, nil }
func (s *mapStore) DatabaseVersion(string) (int64, bool, error) { return 0, false, nil }
func (s *mapStore) SetDatabaseVersion(string, int64) error      { return nil }
func (s *mapStore) Close() error                                { return nil }

func (s *mapStore) DeleteDatabase(name string) error {
	prefix := name + "\x00"
	for k := range s.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *mapStore) GetRecord(db string, key []byte) ([]byte, error) {
	s.reads++
	v, ok := s.data[db+"\x00"+string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *mapStore) PutRecord(db string, key, value []byte) error {
	s.data[db+"\x00"+string(key)] = value
	return nil
}

func (s *mapStore) DeleteRecord(db string, key []byte) error {
	delete(s.data, db+"\x00"+string(key))
	return nil
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := newMapStore()
	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	require.NoError(t, c.PutRecord("db", []byte("k"), []byte("v")))

	// Put primes the cache, so reads never hit the inner store.
	for i := 0; i < 3; i++ {
		v, err := c.GetRecord("db", []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), v)
	}
	assert.Equal(t, 0, inner.reads)

	hits, misses := c.CacheStats()
	assert.Equal(t, uint64(3), hits)
	assert.Equal(t, uint64(0), misses)
}

func TestCachedStoreMissFillsCache(t *testing.T) {
	inner := newMapStore()
	require.NoError(t, inner.PutRecord("db", []byte("k"), []byte("v")))

	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	_, err = c.GetRecord("db", []byte("k"))
	require.NoError(t, err)
	_, err = c.GetRecord("db", []byte("k"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reads, "second read must be served from cache")
}

func TestCachedStoreInvalidation(t *testing.T) {
	inner := newMapStore()
	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	require.NoError(t, c.PutRecord("db", []byte("k"), []byte("v")))
	require.NoError(t, c.DeleteRecord("db", []byte("k")))

	_, err = c.GetRecord("db", []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStoreDeleteDatabasePurgesPrefix(t *testing.T) {
	inner := newMapStore()
	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	require.NoError(t, c.PutRecord("doomed", []byte("k"), []byte("v1")))
	require.NoError(t, c.PutRecord("spared", []byte("k"), []byte("v2")))

	require.NoError(t, c.DeleteDatabase("doomed"))

	_, err = c.GetRecord("doomed", []byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := c.GetRecord("spared", []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	inner := newMapStore()
	c, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	require.NoError(t, c.PutRecord("db", []byte("k"), []byte("abc")))
	v, err := c.GetRecord("db", []byte("k"))
	require.NoError(t, err)
	v[0] = 'X'

	again, err := c.GetRecord("db", []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "mutating a returned value must not poison the cache")
}

func TestWrapCache(t *testing.T) {
	inner := newMapStore()

	s, err := WrapCache(inner, Options{})
	require.NoError(t, err)
	assert.Same(t, Store(inner), s, "zero cache size must not wrap")

	s, err = WrapCache(inner, Options{CacheSize: 8})
	require.NoError(t, err)
	_, ok := s.(*CachedStore)
	assert.True(t, ok)
}
