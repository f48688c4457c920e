package catalog

import "fmt"

// Edge is a directed transition between two named configurations, with an
// optional guard. A nil guard always permits the transition.
type Edge struct {
	From  string
	To    string
	Guard *Guard
}

// Graph holds the transition edges between named configurations.
//
// Edges are kept per from-configuration in definition order; when several
// edges lead to the same target, the earliest-defined edge with a true
// guard is selected.
//
// Graph is NOT safe for concurrent use; the engine owns it.
type Graph struct {
	catalog *Catalog
	edges   map[string][]Edge
}

// NewGraph creates an empty transition graph over a catalog.
func NewGraph(catalog *Catalog) *Graph {
	return &Graph{
		catalog: catalog,
		edges:   make(map[string][]Edge),
	}
}

// Define adds a transition edge.
//
// Referencing an undefined configuration name is configuration-time misuse
// and fails fast here, at definition time, rather than surfacing later as
// a runtime diagnostic.
func (g *Graph) Define(from, to string, guard *Guard) error {
	if !g.catalog.Has(from) {
		return fmt.Errorf("define transition %s -> %s: configuration %q not defined", from, to, from)
	}
	if !g.catalog.Has(to) {
		return fmt.Errorf("define transition %s -> %s: configuration %q not defined", from, to, to)
	}

	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, Guard: guard})
	return nil
}

// Remove deletes all edges from one configuration to another.
// Returns false if no such edge was defined.
func (g *Graph) Remove(from, to string) bool {
	edges := g.edges[from]
	kept := edges[:0]
	removed := false
	for _, e := range edges {
		if e.To == to {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(g.edges, from)
	} else {
		g.edges[from] = kept
	}
	return removed
}

// EdgesFrom returns a copy of the edges leaving a configuration, in
// definition order.
func (g *Graph) EdgesFrom(from string) []Edge {
	edges := g.edges[from]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// Select returns the first edge from -> to whose guard evaluates true
// against the committed snapshot.
//
// Guard evaluation errors do not qualify the edge; if no edge qualifies,
// the first evaluation error (if any) is returned alongside ok=false so
// the caller can log it.
func (g *Graph) Select(from, to string, snap map[string]string) (Edge, bool, error) {
	var firstErr error
	for _, e := range g.edges[from] {
		if e.To != to {
			continue
		}
		if e.Guard == nil {
			return e, true, nil
		}
		pass, err := e.Guard.Eval(snap)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if pass {
			return e, true, nil
		}
	}
	return Edge{}, false, firstErr
}
