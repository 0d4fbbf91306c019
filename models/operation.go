package models

import (
	"encoding/json"
	"time"
)

// OperationKind enumerates the mutation intents the engine can record.
type OperationKind string

const (
	OpCreate     OperationKind = "create"
	OpUpdate     OperationKind = "update"
	OpDelete     OperationKind = "delete"
	OpBulkUpdate OperationKind = "bulk_update"
)

// PendingOperation is one not-yet-confirmed intent to mutate a record.
//
// Operations live in the pending operation log from the moment a local
// mutation is accepted until the server acknowledges them (or they exhaust
// their retry budget and turn terminal).
type PendingOperation struct {
	// OperationID is a globally unique client-generated identifier used for
	// de-duplication: the server applies a given OperationID at most once.
	OperationID string `json:"operation_id"`

	// Kind is the mutation intent.
	Kind OperationKind `json:"kind"`

	// EntityID identifies the record the operation targets.
	EntityID string `json:"entity_id"`

	// Payload carries the mutation's data, opaque to the engine.
	Payload json.RawMessage `json:"payload,omitempty"`

	// ClientVersion is the record version this mutation was based on. The
	// server compares it against its own version to detect conflicts.
	ClientVersion int64 `json:"client_version"`

	// CreatedAt orders operations for the same entity (FIFO per entity).
	CreatedAt time.Time `json:"created_at"`

	// RetryCount is the number of failed delivery attempts so far.
	RetryCount int `json:"retry_count"`

	// MaxRetries bounds RetryCount; once reached the operation is terminal.
	MaxRetries int `json:"max_retries"`

	// TerminalError holds the final error message once retries are exhausted
	// or the server rejected the operation permanently. Empty while the
	// operation is still eligible for delivery.
	TerminalError string `json:"terminal_error,omitempty"`
}

// Terminal reports whether the operation has left the delivery cycle.
func (o PendingOperation) Terminal() bool {
	return o.TerminalError != ""
}

// Clone returns a deep copy of the operation.
func (o PendingOperation) Clone() PendingOperation {
	out := o
	if o.Payload != nil {
		out.Payload = append(json.RawMessage(nil), o.Payload...)
	}
	return out
}
