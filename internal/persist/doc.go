// Package persist provides the SQLite-backed snapshot sink.
//
// The engine mirrors its committed store here after every commit and can
// seed itself from the last persisted snapshot at startup. Alongside the
// snapshot, an append-only journal records each committed transaction
// (sequence number, transaction token, matched configuration, changed
// keys), which supports resuming the commit clock and inspecting recent
// history from the CLI.
package persist
