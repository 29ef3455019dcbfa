package backingstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// DriverFactory is a function that creates a new driver instance.
type DriverFactory func(opts Options) (Driver, error)

var (
	driverMu        sync.RWMutex
	driverFactories = make(map[string]DriverFactory)
)

// Register registers a driver factory with the given name. Drivers register
// themselves from init; importing a driver package makes it available.
func Register(name string, factory DriverFactory) {
	driverMu.Lock()
	defer driverMu.Unlock()
	driverFactories[name] = factory
}

// New creates a new driver instance for the given name and options.
func New(name string, opts Options) (Driver, error) {
	driverMu.RLock()
	factory, ok := driverFactories[name]
	driverMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backing store driver: %s", name)
	}

	return factory(opts.withDefaults())
}

// Available returns a list of registered driver names.
func Available() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()

	names := make([]string, 0, len(driverFactories))
	for name := range driverFactories {
		names = append(names, name)
	}
	return names
}

// IsAvailable checks whether a driver with the given name is registered.
func IsAvailable(name string) bool {
	driverMu.RLock()
	_, ok := driverFactories[name]
	driverMu.RUnlock()
	return ok
}

// StorePath returns the filesystem location of an origin's store under
// dataDir, suffixed by the driver name.
func StorePath(dataDir, origin, driver string) string {
	return filepath.Join(dataDir, escapeOrigin(origin)+".origindb."+driver)
}

// escapeOrigin maps an opaque origin identifier onto a filesystem-safe name.
func escapeOrigin(origin string) string {
	var b strings.Builder
	b.Grow(len(origin))
	for _, r := range origin {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
