// Package compiler turns CUE declaration manifests into the engine's
// runtime structures: binding declarations, the configuration catalog and
// the guarded transition graph.
//
// A manifest has three top-level fields:
//
//	bindings: {
//		"sidebar.class": {kind: "class", class: "open"}
//		"toggle.text":   {kind: "text"}
//		"toggle.click":  {kind: "text", eventOnly: true}
//	}
//
//	configurations: [
//		{name: "HIDDEN", values: {"sidebar.class": "", "toggle.text": "Show", "toggle.click": "*"}},
//		{name: "VISIBLE", values: {"sidebar.class": "open", "toggle.text": "Hide", "toggle.click": "*"}},
//	]
//
//	transitions: [
//		{from: "HIDDEN", to: "VISIBLE", when: "values[\"panel.disabled\"] != \"true\""},
//	]
//
// configurations is a list because definition order is semantic: the
// matcher is first-match-wins. Compilation fails fast with source
// positions; Validate collects every cross-reference problem in one pass
// for editor-style reporting.
package compiler
