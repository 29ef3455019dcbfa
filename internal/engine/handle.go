package engine

import (
	"sync/atomic"

	"github.com/origindb/origindb/internal/storage/backingstore"
)

// BackendHandle is a shared, reference-counted handle to one opened backing
// store. The factory's registry entry holds exactly one reference; every
// consumer (database instance, in-flight names scan) holds one more while it
// uses the store. The store physically closes when the count reaches zero.
type BackendHandle struct {
	key   string
	store backingstore.Store
	refs  atomic.Int64
}

// newBackendHandle wraps a freshly opened store. The initial reference
// belongs to the registry's map entry.
func newBackendHandle(key string, store backingstore.Store) *BackendHandle {
	h := &BackendHandle{key: key, store: store}
	h.refs.Store(1)
	return h
}

// Key returns the backend key this handle was opened under.
func (h *BackendHandle) Key() string { return h.key }

// Store returns the underlying backing store.
func (h *BackendHandle) Store() backingstore.Store { return h.store }

// RefCount returns the current reference count.
func (h *BackendHandle) RefCount() int64 { return h.refs.Load() }

// Ref takes an additional reference.
func (h *BackendHandle) Ref() {
	h.refs.Add(1)
}

// Unref drops one reference, closing the store when none remain.
func (h *BackendHandle) Unref() error {
	n := h.refs.Add(-1)
	if n < 0 {
		panic("origindb: backend handle reference count went negative")
	}
	if n == 0 {
		return h.store.Close()
	}
	return nil
}
