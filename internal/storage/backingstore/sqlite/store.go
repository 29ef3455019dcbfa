// Package sqlite implements a backing store driver on a single sqlite file
// per origin, using the cgo-free modernc driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

func init() {
	backingstore.Register("sqlite", func(opts backingstore.Options) (backingstore.Driver, error) {
		return New(opts)
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS databases (
	name    TEXT PRIMARY KEY,
	meta    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	db      TEXT NOT NULL,
	key     BLOB NOT NULL,
	value   BLOB NOT NULL,
	PRIMARY KEY (db, key)
);
`

// Driver opens sqlite-backed stores.
type Driver struct {
	opts  backingstore.Options
	codec *backingstore.RecordCodec
}

// New creates a sqlite driver with the given options.
func New(opts backingstore.Options) (*Driver, error) {
	codec, err := backingstore.NewRecordCodec(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{opts: opts, codec: codec}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "sqlite" }

// OpenPersistent opens the on-disk store for an origin under dataDir.
func (d *Driver) OpenPersistent(origin, dataDir, key string) (backingstore.Store, backingstore.DataLoss, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, backingstore.DataLossNone, fmt.Errorf("create data directory: %w", err)
	}

	path := backingstore.StorePath(dataDir, origin, d.Name())
	s, err := d.open(path, key)
	if err != nil {
		return nil, backingstore.DataLossNone, err
	}
	return s, backingstore.DataLossNone, nil
}

// OpenInMemory opens a store on a private in-memory sqlite database.
func (d *Driver) OpenInMemory(key string) (backingstore.Store, error) {
	return d.open(":memory:", key)
}

func (d *Driver) open(dsn, key string) (backingstore.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", dsn, err)
	}
	// One connection: an in-memory database exists per connection, and a
	// single writer avoids SQLITE_BUSY on the file-backed case.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite store %s: %w", dsn, err)
	}

	return backingstore.WrapCache(&store{key: key, db: db, codec: d.codec}, d.opts)
}

type store struct {
	key    string
	db     *sql.DB
	codec  *backingstore.RecordCodec
	closed atomic.Bool
}

func (s *store) DatabaseNames() ([]string, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	rows, err := s.db.Query(`SELECT name FROM databases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("scan database names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *store) DatabaseVersion(name string) (int64, bool, error) {
	if s.closed.Load() {
		return 0, false, backingstore.ErrStoreClosed
	}

	var raw []byte
	err := s.db.QueryRow(`SELECT meta FROM databases WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
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
	_, err = s.db.Exec(
		`INSERT INTO databases (name, meta) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET meta = excluded.meta`, name, raw)
	if err != nil {
		return fmt.Errorf("write database metadata: %w", err)
	}
	return nil
}

func (s *store) DeleteDatabase(name string) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE db = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete database %q: %w", name, err)
	}
	if _, err := tx.Exec(`DELETE FROM databases WHERE name = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete database %q: %w", name, err)
	}
	return tx.Commit()
}

func (s *store) GetRecord(db string, key []byte) ([]byte, error) {
	if s.closed.Load() {
		return nil, backingstore.ErrStoreClosed
	}

	var raw []byte
	err := s.db.QueryRow(`SELECT value FROM records WHERE db = ? AND key = ?`, db, key).Scan(&raw)
	if err == sql.ErrNoRows {
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
	_, err = s.db.Exec(
		`INSERT INTO records (db, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(db, key) DO UPDATE SET value = excluded.value`, db, key, encoded)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *store) DeleteRecord(db string, key []byte) error {
	if s.closed.Load() {
		return backingstore.ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM records WHERE db = ? AND key = ?`, db, key); err != nil {
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
