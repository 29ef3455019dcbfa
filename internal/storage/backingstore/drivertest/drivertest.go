// Package drivertest holds the conformance suite every backing store driver
// must pass.
package drivertest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

const (
	testOrigin = "https://conformance.example"
	testKey    = testOrigin + "@1"
)

func newDriver(t *testing.T, name string) backingstore.Driver {
	t.Helper()
	d, err := backingstore.New(name, backingstore.Options{
		CacheSize:  64,
		Compressor: "lz4",
	})
	require.NoError(t, err)
	return d
}

// Run exercises the named driver against the Store contract.
func Run(t *testing.T, name string) {
	t.Run("VersionBookkeeping", func(t *testing.T) {
		s, err := newDriver(t, name).OpenInMemory(testKey)
		require.NoError(t, err)
		defer s.Close()

		_, found, err := s.DatabaseVersion("db1")
		require.NoError(t, err)
		assert.False(t, found, "unversioned database must report found=false")

		require.NoError(t, s.SetDatabaseVersion("db1", 7))
		v, found, err := s.DatabaseVersion("db1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(7), v)

		require.NoError(t, s.SetDatabaseVersion("db1", 8))
		v, _, err = s.DatabaseVersion("db1")
		require.NoError(t, err)
		assert.Equal(t, int64(8), v)
	})

	t.Run("DatabaseNamesOrdered", func(t *testing.T) {
		s, err := newDriver(t, name).OpenInMemory(testKey)
		require.NoError(t, err)
		defer s.Close()

		for _, db := range []string{"zeta", "alpha", "mu"} {
			require.NoError(t, s.SetDatabaseVersion(db, 1))
		}
		names, err := s.DatabaseNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "mu", "zeta"}, names)
	})

	t.Run("RecordRoundTrip", func(t *testing.T) {
		s, err := newDriver(t, name).OpenInMemory(testKey)
		require.NoError(t, err)
		defer s.Close()

		small := []byte("value")
		large := bytes.Repeat([]byte("abcdefgh"), 1024) // compresses

		require.NoError(t, s.PutRecord("db1", []byte("small"), small))
		require.NoError(t, s.PutRecord("db1", []byte("large"), large))

		got, err := s.GetRecord("db1", []byte("small"))
		require.NoError(t, err)
		assert.Equal(t, small, got)

		got, err = s.GetRecord("db1", []byte("large"))
		require.NoError(t, err)
		assert.Equal(t, large, got)

		// Overwrite.
		require.NoError(t, s.PutRecord("db1", []byte("small"), []byte("value2")))
		got, err = s.GetRecord("db1", []byte("small"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value2"), got)

		// Missing key.
		_, err = s.GetRecord("db1", []byte("absent"))
		assert.ErrorIs(t, err, backingstore.ErrNotFound)

		// Databases do not share keyspaces.
		_, err = s.GetRecord("db2", []byte("small"))
		assert.ErrorIs(t, err, backingstore.ErrNotFound)

		require.NoError(t, s.DeleteRecord("db1", []byte("small")))
		_, err = s.GetRecord("db1", []byte("small"))
		assert.ErrorIs(t, err, backingstore.ErrNotFound)
	})

	t.Run("DeleteDatabase", func(t *testing.T) {
		s, err := newDriver(t, name).OpenInMemory(testKey)
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.SetDatabaseVersion("doomed", 1))
		require.NoError(t, s.SetDatabaseVersion("spared", 1))
		require.NoError(t, s.PutRecord("doomed", []byte("k"), []byte("v")))
		require.NoError(t, s.PutRecord("spared", []byte("k"), []byte("v")))

		require.NoError(t, s.DeleteDatabase("doomed"))

		names, err := s.DatabaseNames()
		require.NoError(t, err)
		assert.Equal(t, []string{"spared"}, names)

		_, err = s.GetRecord("doomed", []byte("k"))
		assert.ErrorIs(t, err, backingstore.ErrNotFound)
		got, err := s.GetRecord("spared", []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		// Deleting an absent database is not an error.
		require.NoError(t, s.DeleteDatabase("never-existed"))
	})

	t.Run("ClosedStoreRejectsOperations", func(t *testing.T) {
		s, err := newDriver(t, name).OpenInMemory(testKey)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		_, err = s.GetRecord("db1", []byte("k"))
		assert.ErrorIs(t, err, backingstore.ErrStoreClosed)
		assert.ErrorIs(t, s.PutRecord("db1", []byte("k"), []byte("v")), backingstore.ErrStoreClosed)

		// Double close is harmless.
		assert.NoError(t, s.Close())
	})

	t.Run("PersistentReopen", func(t *testing.T) {
		d := newDriver(t, name)
		dir := t.TempDir()

		s, loss, err := d.OpenPersistent(testOrigin, dir, testKey)
		require.NoError(t, err)
		assert.Equal(t, backingstore.DataLossNone, loss)

		require.NoError(t, s.SetDatabaseVersion("db1", 4))
		require.NoError(t, s.PutRecord("db1", []byte("k"), []byte("persisted")))
		require.NoError(t, s.Close())

		s, loss, err = d.OpenPersistent(testOrigin, dir, testKey)
		require.NoError(t, err)
		assert.Equal(t, backingstore.DataLossNone, loss)
		defer s.Close()

		v, found, err := s.DatabaseVersion("db1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(4), v)

		got, err := s.GetRecord("db1", []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("persisted"), got)
	})
}
