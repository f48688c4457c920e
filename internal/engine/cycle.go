package engine

import "sync"

// CycleDetector tracks store-snapshot fingerprints per cascade to prevent
// infinite watcher loops.
//
// A cycle occurs when a cascade of watcher-issued requests drives the
// store back to a snapshot it already held earlier in the same cascade:
//
//	commit A → watcher requests x → commit B → watcher requests y
//	→ would commit A again ← CYCLE DETECTED
//
// The detector records the fingerprint of the committed snapshot at the
// start of a cascade and after every commit within it. Before each commit,
// the engine asks whether the would-be snapshot was already seen; if so,
// the pending transaction is aborted and the rest of the cascade dropped,
// leaving the store at its last stable commit.
//
// History is per transaction token and cleared when the cascade settles,
// so independent cascades may legitimately revisit the same snapshots.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // txn token → fingerprint set
}

// NewCycleDetector creates an empty cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// Seen reports whether a fingerprint was already recorded in this cascade.
func (c *CycleDetector) Seen(txn, fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[txn] == nil {
		return false
	}
	return c.history[txn][fingerprint]
}

// Record marks a fingerprint as seen in this cascade.
func (c *CycleDetector) Record(txn, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[txn] == nil {
		c.history[txn] = make(map[string]bool)
	}
	c.history[txn][fingerprint] = true
}

// Clear removes all history for a cascade. Called when the cascade
// settles (committed, held, or aborted) to prevent unbounded growth.
func (c *CycleDetector) Clear(txn string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, txn)
}

// HistorySize returns the number of cascades with tracked history.
// Used for testing and introspection.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}
