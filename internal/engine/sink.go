package engine

import "context"

// CommitRecord describes one committed transaction for the journal.
type CommitRecord struct {
	// Seq is the engine's logical commit sequence number.
	Seq int64

	// Txn is the transaction token of the cascade that committed.
	Txn string

	// Config names the configuration matched by the commit.
	Config string

	// Changed lists the keys whose committed value changed, in staging
	// order.
	Changed []string
}

// SnapshotSink is the optional persistence boundary.
//
// The engine mirrors the whole store to the sink after every commit and
// seeds itself from the sink at startup. The sink is opaque: the engine
// never reads individual keys back, only whole snapshots.
//
// Sink failures are logged, non-fatal diagnostics: the in-memory store is
// authoritative and a missed mirror only costs durability, not
// correctness.
type SnapshotSink interface {
	// Load returns the last saved snapshot, or an empty map if nothing
	// was ever saved.
	Load(ctx context.Context) (map[string]string, error)

	// Save replaces the persisted snapshot and appends a journal record.
	Save(ctx context.Context, snapshot map[string]string, rec CommitRecord) error
}
