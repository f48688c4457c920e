// Package engine implements the match-gated commit protocol that turns
// individual key/value change requests into whole-configuration commits.
//
// Requests stage into a pending overlay. When the merged view of store
// and overlay fully matches a catalog configuration, the overlay commits
// atomically: the store advances, watchers are notified, bound effects
// are applied and the snapshot is mirrored to an optional sink. While no
// configuration matches, staged changes are held and the committed store
// stays at its last stable state.
//
// Watcher callbacks may issue further requests; these are queued FIFO and
// processed within the same cascade, bounded by snapshot-fingerprint
// cycle detection and a step quota.
package engine
