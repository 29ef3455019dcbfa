// Package engine coordinates the lifetime of per-origin backing stores and
// the logical databases opened against them. Many concurrent database
// handles for one origin share a single store; an unreferenced store stays
// open for a short grace period so that a rapid close-then-reopen cycle
// avoids re-initializing storage.
package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

// DefaultGracePeriod is the delay between the last consumer releasing a
// backing store and the store actually closing.
const DefaultGracePeriod = 2 * time.Second

// Options configures a Factory.
type Options struct {
	// Driver names the registered backing store driver. Defaults to
	// "leveldb".
	Driver string

	// DriverOptions are passed through to the driver.
	DriverOptions backingstore.Options

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Factory is the top-level coordinator. It owns the registry of live
// database instances and the registry of shared backing stores, and
// brokers every caller-facing operation.
//
// All registry mutation happens under one lock; the grace-timer callback
// takes the same lock, so a firing timer is just another registry
// operation and cannot race a concurrent obtain on the same key.
type Factory struct {
	driver      backingstore.Driver
	gracePeriod time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	databases   map[Identity]*Database
	backends    map[string]*backendEntry
	sessionOnly map[string]struct{}
	mode        storageMode
}

// NewFactory builds a Factory over the named driver.
func NewFactory(opts Options) (*Factory, error) {
	name := opts.Driver
	if name == "" {
		name = "leveldb"
	}
	driver, err := backingstore.New(name, opts.DriverOptions)
	if err != nil {
		return nil, fmt.Errorf("engine factory: %w", err)
	}

	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Factory{
		driver:      driver,
		gracePeriod: grace,
		logger:      logger.With("component", "engine"),
		databases:   make(map[Identity]*Database),
		backends:    make(map[string]*backendEntry),
		sessionOnly: make(map[string]struct{}),
	}, nil
}

// Open opens a connection to the named database for an origin, creating the
// database instance (and the origin's backing store) on first use. The
// result arrives through sink: *Connection on success.
func (f *Factory) Open(name string, version, transactionID int64,
	sink ResultSink, callbacks ConnectionCallbacks, origin, dataDir string) {

	var deferred []func()
	func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.openLocked(name, version, transactionID, sink, callbacks, origin, dataDir, &deferred)
	}()
	for _, fn := range deferred {
		fn()
	}
}

func (f *Factory) openLocked(name string, version, transactionID int64,
	sink ResultSink, callbacks ConnectionCallbacks, origin, dataDir string,
	deferred *[]func()) {

	id := Identity{Origin: origin, Name: name}
	db, ok := f.databases[id]
	loss := backingstore.DataLossNone

	if !ok {
		e, l, err := f.obtainLocked(origin, dataDir)
		if err != nil {
			if backingstore.IsDiskFull(err) {
				*deferred = append(*deferred, func() {
					sink.OnError(ErrorKindQuotaExceeded,
						"encountered full disk while opening backing store for open")
				})
				return
			}
			*deferred = append(*deferred, func() {
				sink.OnError(ErrorKindBackendOpenFailed,
					"internal error opening backing store for open")
			})
			return
		}
		loss = l

		db, err = newDatabase(f, id, e.handle)
		if err != nil {
			e.handle.Unref()
			f.releaseBackingStoreLocked(e.handle.Key(), false)
			*deferred = append(*deferred, func() {
				sink.OnError(ErrorKindDatabaseCreateFailed,
					"internal error creating database backend for open")
			})
			return
		}
		f.databases[id] = db
	}

	db.openConnectionLocked(sink, callbacks, transactionID, version, loss, deferred)
}

// DeleteDatabase deletes the named database for an origin. A live instance
// performs the delete itself (evicting its connections); otherwise a
// transient instance is constructed solely for the delete and unregistered
// again regardless of outcome. The pre-delete version is reported through
// sink.
func (f *Factory) DeleteDatabase(name string, sink ResultSink, origin, dataDir string) {
	var deferred []func()
	func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleteDatabaseLocked(name, sink, origin, dataDir, &deferred)
	}()
	for _, fn := range deferred {
		fn()
	}
}

func (f *Factory) deleteDatabaseLocked(name string, sink ResultSink,
	origin, dataDir string, deferred *[]func()) {

	id := Identity{Origin: origin, Name: name}
	if db, ok := f.databases[id]; ok {
		db.deleteLocked(sink, deferred)
		return
	}

	e, _, err := f.obtainLocked(origin, dataDir)
	if err != nil {
		*deferred = append(*deferred, func() {
			sink.OnError(ErrorKindBackendOpenFailed,
				"internal error opening backing store for deleteDatabase")
		})
		return
	}

	db, err := newDatabase(f, id, e.handle)
	if err != nil {
		e.handle.Unref()
		f.releaseBackingStoreLocked(e.handle.Key(), false)
		*deferred = append(*deferred, func() {
			sink.OnError(ErrorKindDatabaseCreateFailed,
				"internal error creating database backend for deleteDatabase")
		})
		return
	}

	f.databases[id] = db
	db.deleteLocked(sink, deferred)
}

// GetDatabaseNames reports the names of every database stored for an
// origin, as []string through sink. The backing store is not retained
// beyond the call; release goes through the normal grace-period path.
func (f *Factory) GetDatabaseNames(sink ResultSink, origin, dataDir string) {
	var report func()
	func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		e, _, err := f.obtainLocked(origin, dataDir)
		if err != nil {
			report = func() {
				sink.OnError(ErrorKindBackendOpenFailed,
					"internal error opening backing store for getDatabaseNames")
			}
			return
		}

		names, namesErr := e.handle.Store().DatabaseNames()
		key := e.handle.Key()
		e.handle.Unref()
		f.releaseBackingStoreLocked(key, false)

		if namesErr != nil {
			report = func() {
				sink.OnError(ErrorKindBackendOpenFailed,
					"internal error listing databases for getDatabaseNames")
			}
			return
		}
		report = func() { sink.OnSuccess(names) }
	}()
	report()
}

// GetOpenDatabasesForOrigin returns the live database instances for an
// origin, sorted by name. Diagnostics only.
func (f *Factory) GetOpenDatabasesForOrigin(origin string) []*Database {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*Database
	for id, db := range f.databases {
		if id.Origin == origin {
			result = append(result, db)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].id.Name < result[j].id.Name
	})
	return result
}

// releaseDatabaseLocked unregisters a database that has given up its
// backing store reference, then releases the store. forced propagates
// "skip the grace period" from a forced close.
func (f *Factory) releaseDatabaseLocked(db *Database, forced bool) {
	if db.handle != nil {
		panic("origindb: database released while still holding its backing store")
	}
	delete(f.databases, db.id)
	f.releaseBackingStoreLocked(db.backendKey, forced)
}

// ContextDestroyed tears the factory down: every pending grace timer is
// stopped and the backing store registry is cleared without honoring grace
// periods. Database instances with open connections become inert.
func (f *Factory) ContextDestroyed() {
	f.teardownBackingStores()
}

// IsBackendOpenForTesting reports whether a backing store is currently
// registered for the origin. Diagnostic only.
func (f *Factory) IsBackendOpenForTesting(origin string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.backends[backendKey(origin)]
	return ok
}
