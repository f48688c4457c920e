// Package harness executes YAML-defined conformance scenarios against the
// sync engine.
//
// A scenario names its CUE declaration files, an optional seed snapshot,
// a sequence of change requests and transitions with per-step
// expectations, and final assertions over configuration, state, watcher
// notifications and projected effects.
//
// Every run uses sequential transaction tokens and an in-memory effect
// target, so the produced trace is byte-identical across runs and can be
// compared against golden files (go test ./internal/harness -update to
// regenerate).
package harness
