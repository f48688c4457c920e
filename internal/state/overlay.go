package state

// Overlay is the transient staging area for one in-flight transaction.
//
// Proposed values live in the overlay until the merged (store + overlay)
// view fully matches a catalog configuration, at which point the engine
// calls Commit. The overlay preserves staging order so that change
// notifications fire in the order the changes were requested.
//
// Overlay is NOT safe for concurrent use; see Store.
type Overlay struct {
	store  *Store
	staged map[string]string
	order  []string // keys in first-staging order
}

// NewOverlay creates an empty overlay bound to a store.
func NewOverlay(store *Store) *Overlay {
	return &Overlay{
		store:  store,
		staged: make(map[string]string),
	}
}

// Propose stages value for key if it differs from the committed value.
//
// Returns true if anything changed: either a new staging, or an update to
// an already-staged value. Proposing the committed value removes any
// earlier staging for the key (the transaction no longer changes it) and
// returns false.
//
// Re-proposing a key keeps its original position in staging order.
func (o *Overlay) Propose(key, value string) bool {
	committed, ok := o.store.Get(key)
	if ok && committed == value {
		if _, wasStaged := o.staged[key]; wasStaged {
			o.unstage(key)
		}
		return false
	}

	if prev, wasStaged := o.staged[key]; wasStaged {
		if prev == value {
			return false
		}
		o.staged[key] = value
		return true
	}

	o.staged[key] = value
	o.order = append(o.order, key)
	return true
}

// Commit atomically merges the overlay into the store and clears it.
// Returns the changed keys in staging order.
func (o *Overlay) Commit() []string {
	changed := make([]string, 0, len(o.order))
	for _, key := range o.order {
		value := o.staged[key]
		o.store.set(key, value)
		changed = append(changed, key)
	}
	o.reset()
	return changed
}

// Abort discards all staged values without touching the store.
func (o *Overlay) Abort() {
	o.reset()
}

// Get returns the staged value for a key, if any.
func (o *Overlay) Get(key string) (string, bool) {
	v, ok := o.staged[key]
	return v, ok
}

// Len returns the number of staged keys.
func (o *Overlay) Len() int {
	return len(o.staged)
}

// Merged returns a view where staged values shadow committed values.
//
// The matcher evaluates configurations against this view so that a
// sequence of single-key requests can jointly complete a match before
// anything becomes externally visible.
func (o *Overlay) Merged() View {
	return mergedView{o}
}

// MergedSnapshot returns a copy of the committed state with staged values
// applied on top. This is the snapshot the store would hold if the current
// transaction committed; the engine fingerprints it for cycle detection
// before committing.
func (o *Overlay) MergedSnapshot() map[string]string {
	snap := o.store.Snapshot()
	for k, v := range o.staged {
		snap[k] = v
	}
	return snap
}

func (o *Overlay) unstage(key string) {
	delete(o.staged, key)
	for i, k := range o.order {
		if k == key {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *Overlay) reset() {
	o.staged = make(map[string]string)
	o.order = o.order[:0]
}

type mergedView struct {
	o *Overlay
}

func (v mergedView) Get(key string) (string, bool) {
	if val, ok := v.o.staged[key]; ok {
		return val, true
	}
	return v.o.store.Get(key)
}
