package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycleDetector_SeenPerTransaction(t *testing.T) {
	d := NewCycleDetector()

	assert.False(t, d.Seen("txn-1", "fp-a"))
	d.Record("txn-1", "fp-a")
	assert.True(t, d.Seen("txn-1", "fp-a"))

	// History is keyed per transaction token.
	assert.False(t, d.Seen("txn-2", "fp-a"))

	d.Record("txn-1", "fp-b")
	assert.True(t, d.Seen("txn-1", "fp-b"))
}

func TestCycleDetector_ClearDropsHistory(t *testing.T) {
	d := NewCycleDetector()

	d.Record("txn-1", "fp-a")
	d.Record("txn-2", "fp-b")
	assert.Equal(t, 2, d.HistorySize())

	d.Clear("txn-1")
	assert.False(t, d.Seen("txn-1", "fp-a"))
	assert.True(t, d.Seen("txn-2", "fp-b"))
	assert.Equal(t, 1, d.HistorySize())

	d.Clear("txn-missing") // no-op
	assert.Equal(t, 1, d.HistorySize())
}
