package engine

import (
	"slices"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

// Identity uniquely names one logical database: an origin plus a database
// name within that origin.
type Identity struct {
	Origin string
	Name   string
}

// Database is the live instance for one identity. At most one exists per
// identity at any time. It holds a consumer reference on its backing store
// while at least one connection is active, releasing it (and removing
// itself from the factory) when the last connection closes.
//
// All mutation happens under the owning factory's lock.
type Database struct {
	id         Identity
	backendKey string
	factory    *Factory

	handle  *BackendHandle // nil once released
	version int64

	connections []*Connection
	deleting    bool
}

// newDatabase constructs the instance for id against an obtained handle,
// adopting the caller's consumer reference. Failure leaves the reference
// with the caller.
func newDatabase(f *Factory, id Identity, handle *BackendHandle) (*Database, error) {
	version, _, err := handle.Store().DatabaseVersion(id.Name)
	if err != nil {
		return nil, err
	}
	return &Database{
		id:         id,
		backendKey: handle.Key(),
		factory:    f,
		handle:     handle,
		version:    version,
	}, nil
}

// ID returns the database identity.
func (db *Database) ID() Identity { return db.id }

// Name returns the database name.
func (db *Database) Name() string { return db.id.Name }

// Origin returns the owning origin.
func (db *Database) Origin() string { return db.id.Origin }

// Version returns the current database version.
func (db *Database) Version() int64 {
	db.factory.mu.Lock()
	defer db.factory.mu.Unlock()
	return db.version
}

// ConnectionCount returns the number of open connections.
func (db *Database) ConnectionCount() int {
	db.factory.mu.Lock()
	defer db.factory.mu.Unlock()
	return len(db.connections)
}

// ForceClose evicts every open connection. The release skips the grace
// period: the initiator assumes the backing store is let go once all
// connections are closed.
func (db *Database) ForceClose() {
	var deferred []func()
	func() {
		db.factory.mu.Lock()
		defer db.factory.mu.Unlock()
		for _, c := range slices.Clone(db.connections) {
			c.closeLocked(true, &deferred)
		}
	}()
	for _, fn := range deferred {
		fn()
	}
}

// openConnectionLocked opens one connection, upgrading the stored version
// when the requested version is higher. Existing connections learn about an
// upgrade through OnVersionChange.
func (db *Database) openConnectionLocked(sink ResultSink, callbacks ConnectionCallbacks,
	transactionID, version int64, loss backingstore.DataLoss, deferred *[]func()) {

	if version > db.version {
		old := db.version
		if err := db.handle.Store().SetDatabaseVersion(db.id.Name, version); err != nil {
			*deferred = append(*deferred, func() {
				sink.OnError(ErrorKindDatabaseCreateFailed,
					"internal error upgrading database version")
			})
			db.maybeReleaseLocked(false)
			return
		}
		db.version = version
		for _, c := range db.connections {
			if cb := c.callbacks; cb != nil {
				*deferred = append(*deferred, func() { cb.OnVersionChange(old, version) })
			}
		}
	}

	conn := &Connection{
		db:            db,
		callbacks:     callbacks,
		transactionID: transactionID,
		dataLoss:      loss,
	}
	db.connections = append(db.connections, conn)
	*deferred = append(*deferred, func() { sink.OnSuccess(conn) })
}

// deleteLocked force-closes open connections, deletes the database's data
// and reports the pre-delete version. The caller removes transient
// instances afterwards; instances whose last connection was just evicted
// remove themselves here.
func (db *Database) deleteLocked(sink ResultSink, deferred *[]func()) {
	db.deleting = true
	for _, c := range slices.Clone(db.connections) {
		c.closeLocked(true, deferred)
	}
	db.deleting = false

	old := db.version
	if err := db.handle.Store().DeleteDatabase(db.id.Name); err != nil {
		db.factory.logger.Error("deleting database",
			"origin", db.id.Origin, "name", db.id.Name, "error", err)
		*deferred = append(*deferred, func() {
			sink.OnError(ErrorKindBackendOpenFailed, "internal error deleting database")
		})
	} else {
		db.version = 0
		*deferred = append(*deferred, func() { sink.OnSuccess(old) })
	}

	db.maybeReleaseLocked(false)
}

// maybeReleaseLocked gives up the backing store reference and unregisters
// the database once no connections remain.
func (db *Database) maybeReleaseLocked(forced bool) {
	if len(db.connections) != 0 || db.handle == nil {
		return
	}
	h := db.handle
	db.handle = nil
	h.Unref()
	db.factory.releaseDatabaseLocked(db, forced)
}

// Connection is one consumer of a Database. Data operations pass through to
// the backing store; the store itself is internally synchronized, so they
// run outside the factory's lock.
type Connection struct {
	db            *Database
	callbacks     ConnectionCallbacks
	transactionID int64
	dataLoss      backingstore.DataLoss
	closed        bool
}

// Database returns the owning database instance.
func (c *Connection) Database() *Database { return c.db }

// TransactionID returns the identifier the caller opened with.
func (c *Connection) TransactionID() int64 { return c.transactionID }

// DataLoss reports whether opening the backing store discarded data.
func (c *Connection) DataLoss() backingstore.DataLoss { return c.dataLoss }

// Close ends the connection. The last connection to close releases the
// database's backing store reference.
func (c *Connection) Close() {
	var deferred []func()
	func() {
		c.db.factory.mu.Lock()
		defer c.db.factory.mu.Unlock()
		c.closeLocked(false, &deferred)
	}()
	for _, fn := range deferred {
		fn()
	}
}

func (c *Connection) closeLocked(forced bool, deferred *[]func()) {
	if c.closed {
		return
	}
	c.closed = true

	db := c.db
	db.connections = slices.DeleteFunc(db.connections, func(other *Connection) bool {
		return other == c
	})
	if forced {
		if cb := c.callbacks; cb != nil {
			*deferred = append(*deferred, func() { cb.OnForcedClose() })
		}
	}
	if !db.deleting {
		db.maybeReleaseLocked(forced)
	}
}

// snapshotStore returns the store for a data operation, or an error when
// the connection no longer has one.
func (c *Connection) snapshotStore() (backingstore.Store, string, error) {
	c.db.factory.mu.Lock()
	defer c.db.factory.mu.Unlock()
	if c.closed || c.db.handle == nil {
		return nil, "", ErrConnectionClosed
	}
	return c.db.handle.Store(), c.db.id.Name, nil
}

// Get reads one record.
func (c *Connection) Get(key []byte) ([]byte, error) {
	store, name, err := c.snapshotStore()
	if err != nil {
		return nil, err
	}
	return store.GetRecord(name, key)
}

// Put writes one record.
func (c *Connection) Put(key, value []byte) error {
	store, name, err := c.snapshotStore()
	if err != nil {
		return err
	}
	return store.PutRecord(name, key, value)
}

// Delete removes one record.
func (c *Connection) Delete(key []byte) error {
	store, name, err := c.snapshotStore()
	if err != nil {
		return err
	}
	return store.DeleteRecord(name, key)
}
