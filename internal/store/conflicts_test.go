package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgersync/models"
)

func TestConflictSet_LaterConflictReplacesEarlier(t *testing.T) {
	s := NewConflictSet()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	s.Add(models.Conflict{EntityID: "e-1", ServerVersion: 2, DetectedAt: base})
	s.Add(models.Conflict{EntityID: "e-1", ServerVersion: 5, DetectedAt: base.Add(time.Minute)})

	require.Equal(t, 1, s.Len())
	got, err := s.Get("e-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ServerVersion)
}

func TestConflictSet_ListOldestFirst(t *testing.T) {
	s := NewConflictSet()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	s.Add(models.Conflict{EntityID: "e-2", DetectedAt: base.Add(time.Hour)})
	s.Add(models.Conflict{EntityID: "e-1", DetectedAt: base})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "e-1", list[0].EntityID)
	assert.Equal(t, "e-2", list[1].EntityID)
}

func TestConflictSet_RemoveUnknown(t *testing.T) {
	s := NewConflictSet()
	assert.ErrorIs(t, s.Remove("nope"), ErrConflictNotFound)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrConflictNotFound)
}

func TestConflictSet_ExportImportRoundTrip(t *testing.T) {
	s := NewConflictSet()
	s.Add(models.Conflict{
		EntityID:          "e-1",
		ClientVersion:     3,
		ServerVersion:     4,
		ClientPayload:     json.RawMessage(`{"a":1}`),
		ServerPayload:     json.RawMessage(`{"a":2}`),
		ConflictingFields: []string{"a"},
		DetectedAt:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	})

	restored := NewConflictSet()
	restored.Import(s.Export())

	assert.Equal(t, s.List(), restored.List())
}
