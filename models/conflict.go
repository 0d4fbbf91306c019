package models

import (
	"encoding/json"
	"time"
)

// Conflict records a server-detected version mismatch for one entity. Both
// full payloads are retained so a resolution policy can pick either side (or
// a caller-supplied merge) without another round trip.
type Conflict struct {
	EntityID      string          `json:"entity_id"`
	ClientVersion int64           `json:"client_version"`
	ServerVersion int64           `json:"server_version"`
	ClientPayload json.RawMessage `json:"client_payload,omitempty"`
	ServerPayload json.RawMessage `json:"server_payload,omitempty"`

	// ConflictingFields is a best-effort list of top-level payload keys whose
	// values differ. Display sugar only: resolution always swaps whole
	// payloads, never merges fields.
	ConflictingFields []string `json:"conflicting_fields,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Clone returns a deep copy of the conflict.
func (c Conflict) Clone() Conflict {
	out := c
	if c.ClientPayload != nil {
		out.ClientPayload = append(json.RawMessage(nil), c.ClientPayload...)
	}
	if c.ServerPayload != nil {
		out.ServerPayload = append(json.RawMessage(nil), c.ServerPayload...)
	}
	if c.ConflictingFields != nil {
		out.ConflictingFields = append([]string(nil), c.ConflictingFields...)
	}
	return out
}

// PolicyKind selects a conflict resolution strategy.
type PolicyKind string

const (
	// PolicyClientWins re-submits the client's payload on top of the server
	// version.
	PolicyClientWins PolicyKind = "client_wins"

	// PolicyServerWins adopts the server's payload and version locally.
	PolicyServerWins PolicyKind = "server_wins"

	// PolicyManual re-submits a caller-supplied merged payload.
	PolicyManual PolicyKind = "manual"
)

// ResolutionPolicy is the decision applied to a single conflict. Payload is
// only consulted for PolicyManual.
type ResolutionPolicy struct {
	Kind    PolicyKind      `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientWins builds a client-wins resolution policy.
func ClientWins() ResolutionPolicy {
	return ResolutionPolicy{Kind: PolicyClientWins}
}

// ServerWins builds a server-wins resolution policy.
func ServerWins() ResolutionPolicy {
	return ResolutionPolicy{Kind: PolicyServerWins}
}

// Manual builds a resolution policy carrying a caller-merged payload.
func Manual(payload json.RawMessage) ResolutionPolicy {
	return ResolutionPolicy{Kind: PolicyManual, Payload: payload}
}
