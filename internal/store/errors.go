package store

import "errors"

// Sentinel errors returned by store methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrRecordNotFound is returned when a read or delete targets a record
	// id that is not present in the local record store.
	ErrRecordNotFound = errors.New("record was not found")

	// ErrConflictPending is returned when a mutation targets a record that
	// is frozen in the conflicted state. The record stays untouched until
	// the conflict is resolved through the resolver.
	ErrConflictPending = errors.New("record has an unresolved conflict")

	// ErrOperationNotFound is returned when an ack, retry, terminal, or
	// discard call references an operation id absent from the pending log.
	ErrOperationNotFound = errors.New("pending operation was not found")

	// ErrOperationInFlight is returned when a discard targets an operation
	// that is part of a batch currently being delivered to the server.
	ErrOperationInFlight = errors.New("pending operation is in flight")

	// ErrConflictNotFound is returned when a resolution targets an entity
	// with no recorded conflict.
	ErrConflictNotFound = errors.New("conflict was not found")
)
