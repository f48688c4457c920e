// Package catalog holds the predefined-configuration catalog, the matcher
// that decides whether a state view fully satisfies a configuration, and
// the transition graph of guarded configuration-to-configuration edges.
//
// DETERMINISM:
//
// Configurations are kept in definition order and FindMatch always returns
// the earliest-defined full match (first-match-wins). This order never
// changes after definition except through explicit Update/Remove calls, so
// matching is deterministic and repeatable for a given catalog and view.
//
// Matching is a conjunction: every entry of a configuration must be
// satisfied by the view. There is no partial credit; an "unclassified"
// view that matches nothing is a legitimate transient condition, decided
// by the engine, not here.
package catalog
