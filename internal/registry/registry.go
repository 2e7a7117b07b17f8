// Package registry provides handle registries that map small integer
// handles to owned objects.
//
// The adapter hands integer handles to the front protocol for threads,
// stack frames, and variable containers. Each kind of handle gets its own
// Registry instance with its own lifecycle: the thread registry lives for
// the whole session, while frame and variable registries are cleared on
// every resume.
package registry

import (
	"sort"
	"sync"
)

// Registry maps monotonically increasing integer handles to owners.
// Handles start at 1 and are never reused within the life of the registry
// (Clear resets the entries but not the counter, so stale handles from a
// previous pause cycle fail lookup instead of aliasing new objects).
type Registry[T any] struct {
	mu      sync.Mutex
	next    int
	entries map[int]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		next:    1,
		entries: make(map[int]T),
	}
}

// Register stores the owner and returns its newly assigned handle.
func (r *Registry[T]) Register(owner T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle := r.next
	r.next++
	r.entries[handle] = owner
	return handle
}

// Lookup returns the owner for a handle, or false if the handle is unknown.
func (r *Registry[T]) Lookup(handle int) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.entries[handle]
	return owner, ok
}

// Unregister removes a handle. Removing an unknown handle is a no-op.
func (r *Registry[T]) Unregister(handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, handle)
}

// Clear removes all entries. The handle counter is not reset.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[int]T)
}

// All returns the live owners in ascending handle order.
func (r *Registry[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]int, 0, len(r.entries))
	for handle := range r.entries {
		handles = append(handles, handle)
	}
	sort.Ints(handles)

	owners := make([]T, 0, len(handles))
	for _, handle := range handles {
		owners = append(owners, r.entries[handle])
	}
	return owners
}

// Count returns the number of live entries.
func (r *Registry[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}
