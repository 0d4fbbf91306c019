package models

import "time"

// Snapshot is the single durable document the engine persists: every known
// record, every pending operation, every unresolved conflict, and the time
// of the last fully successful sync. Loading a saved snapshot must restore
// engine state exactly.
type Snapshot struct {
	// Records maps record ID to the locally known record state.
	Records map[string]Record `json:"records"`

	// PendingOperations is the ordered not-yet-confirmed mutation log.
	PendingOperations []PendingOperation `json:"pending_operations"`

	// Conflicts maps entity ID to its unresolved conflict.
	Conflicts map[string]Conflict `json:"conflicts"`

	// LastSyncedAt is the completion time of the last sync pass that drained
	// the log without errors or conflicts. Nil until one has happened.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// NewSnapshot returns an empty snapshot with allocated collections.
func NewSnapshot() Snapshot {
	return Snapshot{
		Records:   make(map[string]Record),
		Conflicts: make(map[string]Conflict),
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{LastSyncedAt: s.LastSyncedAt}
	if s.LastSyncedAt != nil {
		ts := *s.LastSyncedAt
		out.LastSyncedAt = &ts
	}
	if s.Records != nil {
		out.Records = make(map[string]Record, len(s.Records))
		for id, rec := range s.Records {
			out.Records[id] = rec.Clone()
		}
	}
	if s.PendingOperations != nil {
		out.PendingOperations = make([]PendingOperation, 0, len(s.PendingOperations))
		for _, op := range s.PendingOperations {
			out.PendingOperations = append(out.PendingOperations, op.Clone())
		}
	}
	if s.Conflicts != nil {
		out.Conflicts = make(map[string]Conflict, len(s.Conflicts))
		for id, c := range s.Conflicts {
			out.Conflicts[id] = c.Clone()
		}
	}
	return out
}
