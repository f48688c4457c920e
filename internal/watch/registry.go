// Package watch implements the per-key watcher registry.
//
// Watchers observe committed values only: the engine dispatches after a
// transaction commits, never for staged overlay values. A watcher callback
// may issue further change requests; the engine defers those to its FIFO
// cascade queue, so dispatch here never re-enters the commit protocol.
package watch

import (
	"fmt"
	"log/slog"
)

// Callback is invoked with the binding key and its new committed value.
type Callback func(key, value string)

// Handle identifies one subscription for later removal.
// The zero Handle is invalid and unsubscribes nothing.
type Handle struct {
	key string
	id  uint64
}

type subscriber struct {
	id uint64
	fn Callback
}

// Registry holds ordered subscriber lists per binding key.
//
// Registry is NOT safe for concurrent use; the engine dispatches from its
// single writer goroutine.
type Registry struct {
	nextID uint64
	subs   map[string][]subscriber
}

// NewRegistry creates an empty watcher registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string][]subscriber)}
}

// Subscribe registers a callback for a binding key and returns a handle
// that removes exactly this subscription.
//
// Any key may be watched, including keys with no declared binding; the
// "watch anything" rule is deliberately wider than the "request-change
// only declared keys" rule enforced by the engine.
func (r *Registry) Subscribe(key string, fn Callback) Handle {
	r.nextID++
	h := Handle{key: key, id: r.nextID}
	r.subs[key] = append(r.subs[key], subscriber{id: h.id, fn: fn})
	return h
}

// Unsubscribe removes the subscription identified by the handle.
// Safe and a no-op if the handle was already removed (or never existed).
func (r *Registry) Unsubscribe(h Handle) {
	subs := r.subs[h.key]
	for i, s := range subs {
		if s.id == h.id {
			r.subs[h.key] = append(subs[:i], subs[i+1:]...)
			if len(r.subs[h.key]) == 0 {
				delete(r.subs, h.key)
			}
			return
		}
	}
}

// Dispatch invokes the callbacks subscribed to key at the start of the
// dispatch, in registration order, with the new committed value.
//
// Snapshot semantics: callbacks subscribed mid-dispatch are not invoked in
// this pass; callbacks unsubscribed mid-dispatch are skipped.
//
// A panicking callback is isolated: the failure is logged and dispatch
// continues with the remaining callbacks. One failing watcher never blocks
// the commit or its siblings. Returns the number of failed callbacks.
func (r *Registry) Dispatch(key, value string) int {
	snapshot := make([]uint64, 0, len(r.subs[key]))
	for _, s := range r.subs[key] {
		snapshot = append(snapshot, s.id)
	}

	failed := 0
	for _, id := range snapshot {
		fn, ok := r.lookup(key, id)
		if !ok {
			continue // unsubscribed mid-dispatch
		}
		if err := invoke(fn, key, value); err != nil {
			failed++
			slog.Error("watcher callback failed",
				"code", "WatcherFailure",
				"key", key,
				"value", value,
				"error", err,
			)
		}
	}
	return failed
}

// Count returns the number of active subscriptions for a key.
// Used for testing and introspection.
func (r *Registry) Count(key string) int {
	return len(r.subs[key])
}

func (r *Registry) lookup(key string, id uint64) (Callback, bool) {
	for _, s := range r.subs[key] {
		if s.id == id {
			return s.fn, true
		}
	}
	return nil, false
}

// invoke runs one callback, converting a panic into an error.
func invoke(fn Callback, key, value string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("watcher panic: %v", rec)
		}
	}()
	fn(key, value)
	return nil
}
