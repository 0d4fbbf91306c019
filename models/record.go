// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import (
	"encoding/json"
	"time"
)

// SyncState describes how a locally known record relates to the remote store.
type SyncState string

const (
	// StateSynced means the local copy matches the last server-confirmed
	// version and no mutation is waiting to be pushed.
	StateSynced SyncState = "synced"

	// StatePendingLocal means the record carries at least one local mutation
	// that has not yet been acknowledged by the server.
	StatePendingLocal SyncState = "pending_local"

	// StateConflicted means the server reported a version mismatch for this
	// record. The record is frozen for ordinary mutations until the conflict
	// is resolved.
	StateConflicted SyncState = "conflicted"
)

// Record is the client's current known state of one business object.
//
// Payload is opaque to the engine: it is stored, versioned, and shipped to
// the server verbatim, never interpreted field by field.
type Record struct {
	// ID is the stable record identifier, caller- or server-assigned.
	ID string `json:"id"`

	// Version is a monotonic counter incremented on every accepted mutation.
	Version int64 `json:"version"`

	// Payload is the business content of the record.
	Payload json.RawMessage `json:"payload,omitempty"`

	// SyncState tracks the record's relation to the remote store.
	SyncState SyncState `json:"sync_state"`

	// UpdatedAt is the wall-clock time of the last local change.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of the record. Payload bytes are copied so the
// caller can never alias engine-owned state.
func (r Record) Clone() Record {
	out := r
	if r.Payload != nil {
		out.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	if r.UpdatedAt != nil {
		ts := *r.UpdatedAt
		out.UpdatedAt = &ts
	}
	return out
}
