package store

import (
	"sort"
	"sync"

	"github.com/ledgerkeep/ledgersync/models"
)

// ConflictSet holds the unresolved conflicts, at most one per entity. A
// later conflict for the same entity replaces the earlier one: the server
// payload it carries is strictly newer.
type ConflictSet struct {
	mu        sync.RWMutex
	conflicts map[string]models.Conflict
}

// NewConflictSet returns an empty conflict set.
func NewConflictSet() *ConflictSet {
	return &ConflictSet{conflicts: make(map[string]models.Conflict)}
}

// Add records c, replacing any existing conflict for the same entity.
func (s *ConflictSet) Add(c models.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[c.EntityID] = c.Clone()
}

// Get returns the conflict recorded for entityID.
// Returns [ErrConflictNotFound] if none exists.
func (s *ConflictSet) Get(entityID string) (models.Conflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conflicts[entityID]
	if !ok {
		return models.Conflict{}, ErrConflictNotFound
	}
	return c.Clone(), nil
}

// Remove clears the conflict for entityID.
// Returns [ErrConflictNotFound] if none exists.
func (s *ConflictSet) Remove(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conflicts[entityID]; !ok {
		return ErrConflictNotFound
	}
	delete(s.conflicts, entityID)
	return nil
}

// List returns snapshots of every unresolved conflict ordered by detection
// time, oldest first.
func (s *ConflictSet) List() []models.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// Len returns the number of unresolved conflicts.
func (s *ConflictSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conflicts)
}

// Export returns a deep copy of the conflict map for persistence.
func (s *ConflictSet) Export() map[string]models.Conflict {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Conflict, len(s.conflicts))
	for id, c := range s.conflicts {
		out[id] = c.Clone()
	}
	return out
}

// Import replaces the set contents. Used once at engine startup.
func (s *ConflictSet) Import(conflicts map[string]models.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conflicts = make(map[string]models.Conflict, len(conflicts))
	for id, c := range conflicts {
		s.conflicts[id] = c.Clone()
	}
}
