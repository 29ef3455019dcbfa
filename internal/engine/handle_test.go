package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/origindb/origindb/internal/storage/backingstore"
	_ "github.com/origindb/origindb/internal/storage/backingstore/leveldb"
)

// fakeStore counts closes; everything else is inert.
type fakeStore struct {
	closes int
}

func (s *fakeStore) DatabaseNames() ([]string, error)            { return nil, nil }
func (s *fakeStore) DatabaseVersion(string) (int64, bool, error) { return 0, false, nil }
func (s *fakeStore) SetDatabaseVersion(string, int64) error      { return nil }
func (s *fakeStore) DeleteDatabase(string) error                 { return nil }
func (s *fakeStore) GetRecord(string, []byte) ([]byte, error)    { return nil, backingstore.ErrNotFound }
func (s *fakeStore) PutRecord(string, []byte, []byte) error      { return nil }
func (s *fakeStore) DeleteRecord(string, []byte) error           { return nil }
func (s *fakeStore) Close() error                                { s.closes++; return nil }

func TestBackendHandleRefCounting(t *testing.T) {
	store := &fakeStore{}
	h := newBackendHandle("origin@1", store)

	require.Equal(t, int64(1), h.RefCount())
	require.Equal(t, "origin@1", h.Key())

	h.Ref()
	require.Equal(t, int64(2), h.RefCount())

	require.NoError(t, h.Unref())
	require.Equal(t, 0, store.closes, "store closed while referenced")

	require.NoError(t, h.Unref())
	require.Equal(t, 1, store.closes, "store not closed at zero references")

	require.Panics(t, func() { h.Unref() })
}

func TestBackendKeyDerivation(t *testing.T) {
	require.Equal(t, "https://a.example@1", backendKey("https://a.example"))
	require.Equal(t, backendKey("o"), backendKey("o"))
	require.NotEqual(t, backendKey("a"), backendKey("b"))
}

func TestGraceTimerDoubleStartPanics(t *testing.T) {
	gt := &graceTimer{}
	gt.start(time.Hour, func(uint64) {})
	require.Panics(t, func() { gt.start(time.Hour, func(uint64) {}) })
	gt.stop()

	// Restart after stop is legal.
	gt.start(time.Hour, func(uint64) {})
	gt.stop()
}

func TestGraceTimerGenerationAdvancesOnRestart(t *testing.T) {
	gt := &graceTimer{}
	gt.start(time.Hour, func(uint64) {})
	first := gt.gen
	gt.stop()
	gt.start(time.Hour, func(uint64) {})
	require.NotEqual(t, first, gt.gen, "generation must advance on restart")
	gt.stop()
}

func TestMaybeCloseUnknownKeyIsNoop(t *testing.T) {
	f, err := NewFactory(Options{Driver: "leveldb", GracePeriod: time.Hour})
	require.NoError(t, err)

	// A timer that fires after its entry was torn down must do nothing.
	f.maybeCloseBackingStore("missing@1", 1)
	require.Empty(t, f.backends)
}
