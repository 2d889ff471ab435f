// Package checkpoint persists pipeline run state in SQLite. One row per
// run, one row per completed stage (the checkpoint), with monotonically
// increasing sequence numbers so resume always reads the latest snapshot
// of each stage. The store is single-writer: an advisory file lock
// guards the database against a second process.
package checkpoint
