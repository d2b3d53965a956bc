// Package oplog implements the append-only operation log that makes every
// timer mutation crash-recoverable.
//
// The log is the sole source of truth for recovery: replaying it in file
// order against an empty store reconstructs the exact live-timer set that
// existed at write time. Records are only ever appended, never rewritten.
package oplog
