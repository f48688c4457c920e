package testutil

import (
	"fmt"
	"sync"
)

// SequentialTxnGenerator generates numbered transaction tokens.
//
// Unlike engine.FixedGenerator, which panics when its predetermined tokens
// run out, this generator never exhausts. It is the default generator for
// scenario runs, where the number of transactions is not known up front
// but golden snapshots still need byte-identical tokens across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialTxnGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTxnGenerator creates a generator producing
// "<prefix>-001", "<prefix>-002", ...
//
// An empty prefix defaults to "txn".
func NewSequentialTxnGenerator(prefix string) *SequentialTxnGenerator {
	if prefix == "" {
		prefix = "txn"
	}
	return &SequentialTxnGenerator{prefix: prefix}
}

// Generate returns the next numbered token.
func (g *SequentialTxnGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	return fmt.Sprintf("%s-%03d", g.prefix, g.n)
}

// Reset restarts the numbering. After Reset the next token is
// "<prefix>-001" again, so a scenario can be re-run in-process.
func (g *SequentialTxnGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
