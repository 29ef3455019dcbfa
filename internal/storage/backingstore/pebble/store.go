// Package pebble implements a backing store driver on top of pebble.
// In-memory stores run against pebble's memory filesystem.
package pebble

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

func init() {
	backingstore.Register("pebble", func(opts backingstore.Options) (backingstore.Driver, error) {
		return New(opts)
	})
}

// Driver opens pebble-backed stores.
type Driver struct {
	opts  backingstore.Options
	codec *backingstore.RecordCodec
}

// New creates a pebble driver with the given options.
func New(opts backingstore.Options) (*Driver, error) {
	codec, err := backingstore.NewRecordCodec(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{opts: opts, codec: codec}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "pebble" }

// OpenPersistent opens the on-disk store for an origin under dataDir.
func (d *Driver) OpenPersistent(origin, dataDir, key string) (backingstore.Store, backingstore.DataLoss, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, backingstore.DataLossNone, fmt.Errorf("create data directory: %w", err)
	}

	path := backingstore.StorePath(dataDir, origin, d.Name())
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, backingstore.DataLossNone, fmt.Errorf("open pebble store %s: %w", path, err)
	}

	s, err := backingstore.WrapCache(&store{key: key, db: db, codec: d.codec}, d.opts)
	if err != nil {
		db.Close()
		return nil, backingstore.DataLossNone, err
	}
	return s, backingstore.DataLossNone, nil
}

// OpenInMemory opens a store on pebble's memory filesystem.
func (d *Driver) OpenInMemory(key string) (backingstore.Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("open in-memory pebble store: %w", err)
	}
	return backingstore.WrapCache(&store{key: key, db: db, codec: d.codec}, d.opts)
}

type store struct {
	key    string
	db     *pebble.DB
	codec  *backingstore.RecordCodec
	closed atomic.Bool
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *store) DatabaseNames() ([]string, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	prefix := backingstore.MetaPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan database names: %w", err)
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		meta, err := backingstore.DecodeMeta(iter.Value())
		if err != nil {
			return nil, err
		}
		names = append(names, meta.Name)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan database names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *store) DatabaseVersion(name string) (int64, bool, error) {
	if s.closed.Load() {
		return 0, false, backingstore.ErrStoreClosed
	}

	raw, closer, err := s.db.Get(backingstore.MetaKey(name))
	if err == pebble.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read database metadata: %w", err)
	}
	meta, err := backingstore.DecodeMeta(raw)
	closer.Close()
	if err != nil {
		return 0, false, err
	}
	return meta.Version, true, nil
}

func (s *store) SetDatabaseVersion(name string, version int64) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	raw, err := backingstore.EncodeMeta(backingstore.DatabaseMeta{Name: name, Version: version})
	if err != nil {
		return err
	}
	if err := s.db.Set(backingstore.MetaKey(name), raw, pebble.Sync); err != nil {
		return fmt.Errorf("write database metadata: %w", err)
	}
	return nil
}

func (s *store) DeleteDatabase(name string) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(backingstore.MetaKey(name), nil); err != nil {
		return err
	}
	prefix := backingstore.RecordPrefix(name)
	if err := batch.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("delete database %q: %w", name, err)
	}
	return nil
}

func (s *store) GetRecord(db string, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	raw, closer, err := s.db.Get(backingstore.RecordKey(db, key))
	if err == pebble.ErrNotFound {
		return nil, backingstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	value, err := s.codec.Decode(raw)
	closer.Close()
	return value, err
}

func (s *store) PutRecord(db string, key, value []byte) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	encoded, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	if err := s.db.Set(backingstore.RecordKey(db, key), encoded, pebble.Sync); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *store) DeleteRecord(db string, key []byte) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	if err := s.db.Delete(backingstore.RecordKey(db, key), pebble.Sync); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
