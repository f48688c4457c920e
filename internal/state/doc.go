// Package state holds the authoritative binding-key/value store and the
// pending overlay used to stage one in-flight transaction.
//
// OWNERSHIP:
//
// The Store is exclusively mutated by the commit engine, and only through
// Overlay.Commit or Store.Seed (startup restore). Watchers and effect
// targets observe committed values; they never write the store directly.
//
// Values are strings by contract, not by coercion. Comparisons are exact
// string comparisons everywhere; there is no implicit "truthiness".
//
// The overlay is scoped to one transaction: created empty, filled during
// staging, then either merged into the store (commit) or discarded (abort).
// While a transaction is held open waiting for a full configuration match,
// the overlay retains its staged values so that a later request can jointly
// complete the match.
package state
