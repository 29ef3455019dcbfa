package backingstore

// Store is one opened backing store: the physical storage for every logical
// database of a single origin. Implementations must be safe for concurrent
// use; the engine performs its own lifecycle bookkeeping on top.
type Store interface {
	// DatabaseNames returns the names of all databases held by this store,
	// in lexical order.
	DatabaseNames() ([]string, error)

	// DatabaseVersion returns the recorded version of the named database.
	// found is false when the database has never been versioned.
	DatabaseVersion(name string) (version int64, found bool, err error)

	// SetDatabaseVersion records the version of the named database,
	// creating its metadata entry if absent.
	SetDatabaseVersion(name string, version int64) error

	// DeleteDatabase removes the named database's metadata and all of its
	// records. Deleting an absent database is not an error.
	DeleteDatabase(name string) error

	// Record operations for one database's keyspace.
	GetRecord(db string, key []byte) ([]byte, error)
	PutRecord(db string, key, value []byte) error
	DeleteRecord(db string, key []byte) error

	// Close releases the underlying storage. The store must not be used
	// afterwards.
	Close() error
}

// DataLoss reports whether opening a persistent store discarded
// pre-existing data during corruption recovery.
type DataLoss int

const (
	DataLossNone DataLoss = iota
	DataLossTotal
)

func (d DataLoss) String() string {
	if d == DataLossTotal {
		return "total"
	}
	return "none"
}

// Driver opens backing stores of one storage flavor.
type Driver interface {
	// Name returns the driver name (also the on-disk suffix).
	Name() string

	// OpenPersistent opens (creating if needed) the on-disk store for an
	// origin under dataDir. key is the engine's backend key, kept for
	// diagnostics. A corrupt store may be recovered, reported via DataLoss.
	OpenPersistent(origin, dataDir, key string) (Store, DataLoss, error)

	// OpenInMemory opens a store with no persistent identity. Its contents
	// are lost on Close.
	OpenInMemory(key string) (Store, error)
}

// Options configures a driver instance.
type Options struct {
	// CacheSize is the number of records kept in the read-through LRU
	// cache. Zero disables caching.
	CacheSize int

	// Compressor names the record compressor ("lz4" or "none").
	Compressor string

	// CompressionLevel is passed through to the compressor.
	CompressionLevel int

	// CompressionThreshold is the minimum value size that gets
	// compressed. Zero selects the default.
	CompressionThreshold int
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Compressor == "" {
		o.Compressor = "lz4"
	}
	if o.CompressionThreshold == 0 {
		o.CompressionThreshold = defaultCompressionThreshold
	}
	return o
}
