// Package leveldb implements the default backing store driver on top of
// goleveldb. A corrupt persistent store is recovered in place; the recovery
// is reported to the engine as total data loss for the origin.
package leveldb

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

func init() {
	backingstore.Register("leveldb", func(opts backingstore.Options) (backingstore.Driver, error) {
		return New(opts)
	})
}

// Driver opens leveldb-backed stores.
type Driver struct {
	opts  backingstore.Options
	codec *backingstore.RecordCodec
}

// New creates a leveldb driver with the given options.
func New(opts backingstore.Options) (*Driver, error) {
	codec, err := backingstore.NewRecordCodec(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{opts: opts, codec: codec}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "leveldb" }

// OpenPersistent opens the on-disk store for an origin under dataDir.
func (d *Driver) OpenPersistent(origin, dataDir, key string) (backingstore.Store, backingstore.DataLoss, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, backingstore.DataLossNone, fmt.Errorf("create data directory: %w", err)
	}

	path := backingstore.StorePath(dataDir, origin, d.Name())
	loss := backingstore.DataLossNone

	db, err := leveldb.OpenFile(path, nil)
	if ldberrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
		loss = backingstore.DataLossTotal
	}
	if err != nil {
		return nil, backingstore.DataLossNone, fmt.Errorf("open leveldb store %s: %w", path, err)
	}

	s, err := backingstore.WrapCache(&store{key: key, db: db, codec: d.codec}, d.opts)
	if err != nil {
		db.Close()
		return nil, backingstore.DataLossNone, err
	}
	return s, loss, nil
}

// OpenInMemory opens a store backed by leveldb's memory storage.
func (d *Driver) OpenInMemory(key string) (backingstore.Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb store: %w", err)
	}
	return backingstore.WrapCache(&store{key: key, db: db, codec: d.codec}, d.opts)
}

type store struct {
	key    string
	db     *leveldb.DB
	codec  *backingstore.RecordCodec
	closed atomic.Bool
}

func (s *store) DatabaseNames() ([]string, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	var names []string
	iter := s.db.NewIterator(util.BytesPrefix(backingstore.MetaPrefix()), nil)
	defer iter.Release()
	for iter.Next() {
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

	raw, err := s.db.Get(backingstore.MetaKey(name), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read database metadata: %w", err)
	}
	meta, err := backingstore.DecodeMeta(raw)
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
	if err := s.db.Put(backingstore.MetaKey(name), raw, nil); err != nil {
		return fmt.Errorf("write database metadata: %w", err)
	}
	return nil
}

func (s *store) DeleteDatabase(name string) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	batch := new(leveldb.Batch)
	batch.Delete(backingstore.MetaKey(name))

	iter := s.db.NewIterator(util.BytesPrefix(backingstore.RecordPrefix(name)), nil)
	for iter.Next() {
		k := make([]byte, len(iter.Key()))
		copy(k, iter.Key())
		batch.Delete(k)
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return fmt.Errorf("scan records for delete: %w", err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete database %q: %w", name, err)
	}
	return nil
}

func (s *store) GetRecord(db string, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	raw, err := s.db.Get(backingstore.RecordKey(db, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, backingstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return s.codec.Decode(raw)
}

func (s *store) PutRecord(db string, key, value []byte) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	encoded, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	if err := s.db.Put(backingstore.RecordKey(db, key), encoded, nil); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *store) DeleteRecord(db string, key []byte) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	if err := s.db.Delete(backingstore.RecordKey(db, key), nil); err != nil {
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
