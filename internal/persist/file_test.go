package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/models"
)

func sampleSnapshot() models.Snapshot {
	updatedAt := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
	syncedAt := time.Date(2026, 8, 12, 9, 31, 15, 500000000, time.UTC)

	s := models.NewSnapshot()
	s.Records["e-1"] = models.Record{
		ID:        "e-1",
		Version:   3,
		Payload:   json.RawMessage(`{"title":"rent","amount":1200}`),
		SyncState: models.StateSynced,
		UpdatedAt: &updatedAt,
	}
	s.Records["e-2"] = models.Record{
		ID:        "e-2",
		Version:   0,
		SyncState: models.StatePendingLocal,
	}
	s.PendingOperations = []models.PendingOperation{
		{
			OperationID:   "op-1",
			Kind:          models.OpUpdate,
			EntityID:      "e-2",
			Payload:       json.RawMessage(`{"title":"food"}`),
			ClientVersion: 0,
			CreatedAt:     updatedAt,
			RetryCount:    1,
			MaxRetries:    3,
		},
		{
			OperationID:   "op-2",
			Kind:          models.OpDelete,
			EntityID:      "e-1",
			ClientVersion: 3,
			CreatedAt:     updatedAt.Add(time.Second),
			MaxRetries:    3,
			TerminalError: "rejected (validation): bad payload",
		},
	}
	s.Conflicts["e-1"] = models.Conflict{
		EntityID:          "e-1",
		ClientVersion:     2,
		ServerVersion:     3,
		ClientPayload:     json.RawMessage(`{"amount":100}`),
		ServerPayload:     json.RawMessage(`{"amount":200}`),
		ConflictingFields: []string{"amount"},
		DetectedAt:        updatedAt,
	}
	s.LastSyncedAt = &syncedAt
	return s
}

func TestFileAdapter_SaveLoadRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			a := NewFileAdapter(fs, "state/snapshot.json", compress, logger.Nop())
			ctx := context.Background()

			want := sampleSnapshot()
			require.NoError(t, a.Save(ctx, want))

			got, err := a.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestFileAdapter_LoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	a := NewFileAdapter(afero.NewMemMapFs(), "missing.json", false, logger.Nop())

	got, err := a.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.Records)
	assert.Empty(t, got.PendingOperations)
	assert.Empty(t, got.Conflicts)
	assert.Nil(t, got.LastSyncedAt)
}

func TestFileAdapter_LoadCorruptedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "snapshot.json", []byte("{not json"), 0o600))

	a := NewFileAdapter(fs, "snapshot.json", false, logger.Nop())
	_, err := a.Load(context.Background())
	assert.Error(t, err)
}

func TestFileAdapter_SaveLeavesNoTempFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewFileAdapter(fs, "snapshot.json", false, logger.Nop())

	require.NoError(t, a.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, a.Save(context.Background(), sampleSnapshot()))

	for seq := 1; seq <= 2; seq++ {
		exists, err := afero.Exists(fs, fmt.Sprintf("snapshot.json.%d.tmp", seq))
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

func TestFileAdapter_ConcurrentSavesKeepSnapshotDecodable(t *testing.T) {
	fs := afero.NewMemMapFs()
	a := NewFileAdapter(fs, "snapshot.json", false, logger.Nop())

	big := sampleSnapshot()
	small := models.NewSnapshot()

	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Save(context.Background(), big))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Save(context.Background(), small))
		}()
		wg.Wait()

		got, err := a.Load(context.Background())
		require.NoError(t, err)
		assert.Contains(t, []int{0, len(big.Records)}, len(got.Records))
	}
}

func TestFileAdapter_SaveRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewFileAdapter(afero.NewMemMapFs(), "snapshot.json", false, logger.Nop())
	assert.Error(t, a.Save(ctx, sampleSnapshot()))
}
