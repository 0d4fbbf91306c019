package models

import "time"

// SyncResult summarises one sync pass. It is transient observability data,
// never persisted; the engine hands it to the caller of an explicit sync and
// uses it internally to decide whether a backoff re-trigger is needed.
type SyncResult struct {
	// Success is true when every drained operation was acknowledged and no
	// conflict or retryable failure occurred.
	Success bool

	// SyncedCount is the number of operations acknowledged by the server.
	SyncedCount int

	// ConflictCount is the number of conflicts created during the pass.
	ConflictCount int

	// ErrorCount is the number of operations that were retried or turned
	// terminal during the pass.
	ErrorCount int

	// Errors collects per-operation error descriptions, bounded by the
	// number of operations in the pass.
	Errors []string

	// Duration is the wall-clock length of the pass.
	Duration time.Duration
}
