package engine

import (
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

// backingStoreSchemaVersion is folded into the backend key so that
// incompatible on-disk layouts never share a store.
const backingStoreSchemaVersion = 1

// backendKey derives the sharing unit for an origin. Two requests with the
// same origin always land on the same key.
func backendKey(origin string) string {
	return origin + "@" + strconv.Itoa(backingStoreSchemaVersion)
}

// backendEntry is one registry slot: a refcounted handle plus its grace
// timer. At most one timer is pending per entry.
type backendEntry struct {
	handle *BackendHandle
	timer  *graceTimer
}

type storageMode int

const (
	modeUnset storageMode = iota
	modePersistent
	modeInMemory
)

// obtainLocked returns a backing store handle for origin with a consumer
// reference taken. The reuse path cancels any pending grace close, so a
// caller can never receive a handle that is about to be closed underneath
// it. An empty dataDir selects an in-memory, session-only store.
func (f *Factory) obtainLocked(origin, dataDir string) (*backendEntry, backingstore.DataLoss, error) {
	key := backendKey(origin)

	if e, ok := f.backends[key]; ok {
		e.timer.stop()
		e.handle.Ref()
		f.logger.Debug("reusing backing store", "key", key)
		return e, backingstore.DataLossNone, nil
	}

	inMemory := dataDir == ""
	switch f.mode {
	case modeUnset:
	case modeInMemory:
		if !inMemory {
			panic("origindb: persistent backing store opened in an in-memory factory")
		}
	case modePersistent:
		if inMemory {
			panic("origindb: in-memory backing store opened in a persistent factory")
		}
	}

	var (
		store backingstore.Store
		loss  backingstore.DataLoss
		err   error
	)
	if inMemory {
		store, err = f.driver.OpenInMemory(key)
	} else {
		store, loss, err = f.driver.OpenPersistent(origin, dataDir, key)
	}
	if err != nil {
		f.logger.Error("opening backing store", "key", key, "error", err)
		return nil, loss, err
	}

	e := &backendEntry{handle: newBackendHandle(key, store), timer: &graceTimer{}}
	e.handle.Ref() // consumer reference for the caller
	f.backends[key] = e
	if inMemory {
		// No persistent identity to reopen later: lifetime is bound to
		// this factory.
		f.sessionOnly[key] = struct{}{}
		f.mode = modeInMemory
	} else {
		f.mode = modePersistent
	}

	f.logger.Debug("opened backing store",
		"key", key, "in_memory", inMemory, "data_loss", loss.String())
	return e, loss, nil
}

// releaseBackingStoreLocked is called whenever a consumer reference may
// have dropped to registry-only. With consumers remaining it is a no-op.
// immediate skips the grace period; otherwise the close is deferred so a
// rapid reopen avoids re-initializing storage.
func (f *Factory) releaseBackingStoreLocked(key string, immediate bool) {
	e, ok := f.backends[key]
	if !ok {
		return
	}
	if e.handle.RefCount() != 1 {
		return
	}

	if immediate {
		f.closeBackingStoreLocked(key)
		return
	}

	e.timer.start(f.gracePeriod, func(gen uint64) {
		f.maybeCloseBackingStore(key, gen)
	})
	f.logger.Debug("grace timer started", "key", key, "grace_period", f.gracePeriod)
}

// maybeCloseBackingStore runs when a grace timer fires. A new consumer may
// have obtained the store in the interim, so last-reference status is
// checked again.
func (f *Factory) maybeCloseBackingStore(key string, gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.backends[key]
	if !ok || !e.timer.pending || e.timer.gen != gen {
		return
	}
	e.timer.pending = false

	if e.handle.RefCount() == 1 {
		f.closeBackingStoreLocked(key)
	}
}

// closeBackingStoreLocked removes the registry entry and drops its
// reference. The timer is stopped first; a forced close can arrive while a
// timer is running.
func (f *Factory) closeBackingStoreLocked(key string) {
	e, ok := f.backends[key]
	if !ok {
		panic("origindb: closing unknown backing store " + key)
	}
	e.timer.stop()
	delete(f.backends, key)
	delete(f.sessionOnly, key)
	if len(f.backends) == 0 {
		f.mode = modeUnset
	}

	if err := e.handle.Unref(); err != nil {
		f.logger.Warn("closing backing store", "key", key, "error", err)
	} else {
		f.logger.Info("closed backing store", "key", key)
	}
}

// teardownBackingStores stops every pending timer and empties the registry
// without honoring grace periods. Stores that became unreferenced are
// closed concurrently.
func (f *Factory) teardownBackingStores() {
	f.mu.Lock()
	entries := make([]*backendEntry, 0, len(f.backends))
	for _, e := range f.backends {
		e.timer.stop()
		entries = append(entries, e)
	}
	f.backends = make(map[string]*backendEntry)
	f.sessionOnly = make(map[string]struct{})
	f.mode = modeUnset
	f.mu.Unlock()

	var g errgroup.Group
	for _, e := range entries {
		e := e
		g.Go(func() error { return e.handle.Unref() })
	}
	if err := g.Wait(); err != nil {
		f.logger.Warn("closing backing stores on teardown", "error", err)
	}
}
