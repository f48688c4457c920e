package state

import "sort"

// View is a read-only lookup over key/value state.
//
// Both the Store (committed values only) and the overlay's merged view
// (committed values shadowed by staged values) implement View. The catalog
// matcher operates on a View so that matching can consider staged values
// without them being externally visible.
type View interface {
	// Get returns the value for a binding key and whether the key is set.
	Get(key string) (string, bool)
}

// Store is the authoritative mapping from binding key to committed value.
//
// Binding keys are immutable "componentId.propertyName" identifiers.
// A key absent from the store is "unset", which is distinct from a key
// holding the empty string.
//
// Store is NOT safe for concurrent use. The engine's single-writer design
// guarantees all reads and writes happen on one goroutine.
type Store struct {
	values map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Get returns the committed value for a key and whether the key is set.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of committed keys.
func (s *Store) Len() int {
	return len(s.values)
}

// Keys returns all committed keys in sorted order.
// Sorted for deterministic iteration in diagnostics and snapshots.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the committed state.
// The copy is safe to hand to persistence sinks and fingerprinting.
func (s *Store) Snapshot() map[string]string {
	snap := make(map[string]string, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	return snap
}

// Seed replaces the store contents with a restored snapshot.
//
// Used once at startup to restore the last stable commit from a snapshot
// sink. Seeding bypasses the commit protocol: the snapshot was produced by
// an earlier successful commit, so it is already a stable state.
func (s *Store) Seed(snap map[string]string) {
	s.values = make(map[string]string, len(snap))
	for k, v := range snap {
		s.values[k] = v
	}
}

// set writes a single committed value. Only Overlay.Commit calls this.
func (s *Store) set(key, value string) {
	s.values[key] = value
}
