package compiler

import (
	"fmt"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/catalog"
)

// Build materializes a manifest into the engine's runtime structures.
//
// Fails fast on the first definition error; callers wanting every problem
// at once run Validate first. The returned catalog and graph preserve
// declaration order.
func Build(m *Manifest, target binding.EffectTarget) (*binding.Registry, *catalog.Catalog, *catalog.Graph, error) {
	bindings := binding.NewRegistry(target)
	for _, d := range m.Bindings {
		if err := bindings.Declare(d); err != nil {
			return nil, nil, nil, fmt.Errorf("build manifest: %w", err)
		}
	}

	cat := catalog.NewCatalog()
	for _, cfg := range m.Configurations {
		if err := cat.Define(cfg.Name, cfg.Values); err != nil {
			return nil, nil, nil, fmt.Errorf("build manifest: %w", err)
		}
	}

	graph := catalog.NewGraph(cat)
	for i, tr := range m.Transitions {
		var guard *catalog.Guard
		if tr.When != "" {
			g, err := catalog.CompileGuard(tr.When)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("build manifest: transitions[%d]: %w", i, err)
			}
			guard = g
		}
		if err := graph.Define(tr.From, tr.To, guard); err != nil {
			return nil, nil, nil, fmt.Errorf("build manifest: %w", err)
		}
	}

	return bindings, cat, graph, nil
}
