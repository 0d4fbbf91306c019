// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package store

import (
	"sort"
	"sync"

	"github.com/ledgerkeep/ledgersync/models"
)

// RecordStore is the in-memory map of entity snapshots the engine owns.
// Every read hands out a deep copy, so callers can never observe a partial
// write or mutate engine state through an aliased payload.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]models.Record
}

// NewRecordStore returns an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]models.Record)}
}

// Get returns a snapshot of the record with the given id.
// Returns [ErrRecordNotFound] if the id is unknown.
func (s *RecordStore) Get(id string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return models.Record{}, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Put stores rec, replacing any previous state for the same id.
// A record currently in the conflicted state is frozen: Put returns
// [ErrConflictPending] until the conflict has been resolved. Resolution
// writes go through [RecordStore.PutResolved] instead.
func (s *RecordStore) Put(rec models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.records[rec.ID]; ok && prev.SyncState == models.StateConflicted {
		return ErrConflictPending
	}

	s.records[rec.ID] = rec.Clone()
	return nil
}

// PutResolved stores rec regardless of a pending conflict. Only the conflict
// resolver calls this, as the final step of applying a resolution policy.
func (s *RecordStore) PutResolved(rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

// Delete removes the record with the given id.
// Returns [ErrRecordNotFound] if the id is unknown.
func (s *RecordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records, id)
	return nil
}

// ListAll returns snapshots of every known record, ordered by id.
func (s *RecordStore) ListAll() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkSynced sets the record's version to the server-confirmed value and
// flips it to the synced state. Called by the coordinator when the server
// verdict for an operation is "applied". Unknown ids are ignored: the record
// may have been deleted locally while the batch was in flight.
func (s *RecordStore) MarkSynced(id string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.Version = version
	rec.SyncState = models.StateSynced
	s.records[id] = rec
}

// MarkPendingLocal flags the record as carrying unacknowledged local
// mutations. Used when an acknowledged operation still leaves later
// operations for the same entity in the log. Unknown ids are ignored.
func (s *RecordStore) MarkPendingLocal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.SyncState = models.StatePendingLocal
	s.records[id] = rec
}

// MarkConflicted freezes the record after the server reported a version
// mismatch. Unknown ids are ignored.
func (s *RecordStore) MarkConflicted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return
	}
	rec.SyncState = models.StateConflicted
	s.records[id] = rec
}

// Export returns a deep copy of the full record map for persistence.
func (s *RecordStore) Export() map[string]models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Record, len(s.records))
	for id, rec := range s.records {
		out[id] = rec.Clone()
	}
	return out
}

// Import replaces the store contents with the given map. Used once at
// engine startup to restore a persisted snapshot.
func (s *RecordStore) Import(records map[string]models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]models.Record, len(records))
	for id, rec := range records {
		s.records[id] = rec.Clone()
	}
}
