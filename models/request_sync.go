// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package models

import "encoding/json"

// Verdict is the server's per-operation outcome inside a sync response.
type Verdict string

const (
	VerdictApplied  Verdict = "applied"
	VerdictConflict Verdict = "conflict"
	VerdictRejected Verdict = "rejected"
)

// ErrorKind classifies a rejected operation. Transient kinds are retried
// with backoff; permanent kinds turn the operation terminal immediately.
type ErrorKind string

const (
	ErrKindNetwork     ErrorKind = "network"
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindUnavailable ErrorKind = "unavailable"
	ErrKindValidation  ErrorKind = "validation"
	ErrKindPermission  ErrorKind = "permission"
)

// Retryable reports whether the kind is worth another delivery attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindNetwork, ErrKindTimeout, ErrKindUnavailable:
		return true
	default:
		return false
	}
}

// SyncOperation is the wire form of one pending operation inside a batch.
type SyncOperation struct {
	OperationID   string          `json:"operation_id"`
	EntityID      string          `json:"entity_id"`
	Kind          OperationKind   `json:"kind"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	ClientVersion int64           `json:"client_version"`
}

// SyncRequest is one batch of operations sent to the remote store. Order is
// significant: the server processes the list front to back, which is what
// preserves per-entity causality across the wire.
type SyncRequest struct {
	// Operations is the ordered batch drained from the pending log.
	Operations []SyncOperation `json:"operations"`

	// Length is the total number of entries in Operations.
	Length int `json:"length"`
}

// OperationResult is the server's verdict for a single submitted operation.
type OperationResult struct {
	OperationID string `json:"operation_id"`

	Verdict Verdict `json:"verdict"`

	// NewVersion is set when Verdict is applied.
	NewVersion int64 `json:"new_version,omitempty"`

	// ServerVersion and ServerPayload are set when Verdict is conflict and
	// describe the authoritative state the client lost against.
	ServerVersion int64           `json:"server_version,omitempty"`
	ServerPayload json.RawMessage `json:"server_payload,omitempty"`

	// ErrorKind is set when Verdict is rejected.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// ErrorMessage optionally elaborates a rejection for display.
	ErrorMessage string `json:"error_message,omitempty"`
}

// SyncResponse mirrors a SyncRequest: one result per submitted operation,
// same length, same order.
type SyncResponse struct {
	// Results holds per-operation verdicts in request order.
	Results []OperationResult `json:"results"`

	// Length is the total number of entries in Results.
	Length int `json:"length"`
}
