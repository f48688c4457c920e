package catalog

import "github.com/unisonui/unison/internal/state"

// Matches reports whether a view fully satisfies a configuration.
//
// Every entry must be satisfied: either the entry is the Wildcard, or the
// view holds exactly the required value for the key. A key present in the
// configuration but unset in the view fails the match unless wildcarded.
// Comparison is exact string equality.
func Matches(cfg Configuration, view state.View) bool {
	for key, want := range cfg.Values {
		if want == Wildcard {
			continue
		}
		got, ok := view.Get(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// FindMatch scans the catalog in definition order and returns the first
// configuration the view fully satisfies.
//
// First-match-wins is the deterministic tie-break when several
// configurations match simultaneously.
func (c *Catalog) FindMatch(view state.View) (Configuration, bool) {
	for _, cfg := range c.configs {
		if Matches(cfg, view) {
			return cfg.clone(), true
		}
	}
	return Configuration{}, false
}

// Validate reports whether at least one configuration fully matches the
// view. This is a non-blocking diagnostic: the engine logs an unclassified
// state but never vetoes a commit on it.
func (c *Catalog) Validate(view state.View) bool {
	_, ok := c.FindMatch(view)
	return ok
}
