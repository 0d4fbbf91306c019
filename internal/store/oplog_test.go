// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgersync/models"
)

func op(id, entityID string, kind models.OperationKind) models.PendingOperation {
	return models.PendingOperation{
		OperationID: id,
		Kind:        kind,
		EntityID:    entityID,
		MaxRetries:  3,
	}
}

func TestOperationLog_EnqueueIsIdempotent(t *testing.T) {
	log := NewOperationLog()

	require.True(t, log.Enqueue(op("op-1", "e-1", models.OpCreate)))
	require.False(t, log.Enqueue(op("op-1", "e-1", models.OpCreate)))

	assert.Equal(t, 1, log.Pending())
}

func TestOperationLog_DequeueBatchPreservesCreationOrder(t *testing.T) {
	log := NewOperationLog()
	for i := 0; i < 5; i++ {
		log.Enqueue(op(fmt.Sprintf("op-%d", i), fmt.Sprintf("e-%d", i), models.OpCreate))
	}

	batch := log.DequeueBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "op-0", batch[0].OperationID)
	assert.Equal(t, "op-1", batch[1].OperationID)
	assert.Equal(t, "op-2", batch[2].OperationID)
}

func TestOperationLog_DequeueBatchOnePerEntity(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))
	log.Enqueue(op("op-2", "e-1", models.OpUpdate))
	log.Enqueue(op("op-3", "e-2", models.OpCreate))

	batch := log.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "op-1", batch[0].OperationID)
	assert.Equal(t, "op-3", batch[1].OperationID)

	// e-1 still has an operation in flight, so op-2 must keep waiting
	batch = log.DequeueBatch(10)
	assert.Empty(t, batch)

	// settling op-1 releases op-2
	require.NoError(t, log.Ack("op-1"))
	batch = log.DequeueBatch(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "op-2", batch[0].OperationID)
}

func TestOperationLog_DequeueBatchSkipsTerminal(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))
	log.Enqueue(op("op-2", "e-2", models.OpCreate))

	require.NoError(t, log.MarkTerminal("op-1", errors.New("validation failed")))

	batch := log.DequeueBatch(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "op-2", batch[0].OperationID)
}

func TestOperationLog_MarkRetryExhaustsBudget(t *testing.T) {
	log := NewOperationLog()
	o := op("op-1", "e-1", models.OpCreate)
	o.MaxRetries = 3
	log.Enqueue(o)

	cause := errors.New("server unavailable")
	for i := 0; i < 2; i++ {
		log.DequeueBatch(1)
		terminal, err := log.MarkRetry("op-1", cause)
		require.NoError(t, err)
		assert.False(t, terminal)
	}

	log.DequeueBatch(1)
	terminal, err := log.MarkRetry("op-1", cause)
	require.NoError(t, err)
	assert.True(t, terminal)

	terminals := log.Terminal()
	require.Len(t, terminals, 1)
	assert.Equal(t, "op-1", terminals[0].OperationID)
	assert.Equal(t, "server unavailable", terminals[0].TerminalError)
	assert.Equal(t, 0, log.Pending())
}

func TestOperationLog_RetryTerminalResetsBudget(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))
	require.NoError(t, log.MarkTerminal("op-1", errors.New("permission denied")))
	require.Equal(t, 0, log.Pending())

	require.NoError(t, log.RetryTerminal("op-1"))

	assert.Equal(t, 1, log.Pending())
	assert.Empty(t, log.Terminal())
	batch := log.DequeueBatch(1)
	require.Len(t, batch, 1)
	assert.Zero(t, batch[0].RetryCount)
}

func TestOperationLog_DiscardRefusesInFlight(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))

	log.DequeueBatch(1)
	err := log.Discard("op-1")
	require.ErrorIs(t, err, ErrOperationInFlight)

	_, err = log.MarkRetry("op-1", errors.New("timeout"))
	require.NoError(t, err)
	require.NoError(t, log.Discard("op-1"))
	assert.Equal(t, 0, log.Pending())
}

func TestOperationLog_DiscardUnknown(t *testing.T) {
	log := NewOperationLog()
	assert.ErrorIs(t, log.Discard("nope"), ErrOperationNotFound)
	assert.ErrorIs(t, log.Ack("nope"), ErrOperationNotFound)
	assert.ErrorIs(t, log.RetryTerminal("nope"), ErrOperationNotFound)
}

func TestOperationLog_ExportDropsInFlightMarkers(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))
	log.Enqueue(op("op-2", "e-2", models.OpCreate))
	log.DequeueBatch(10)

	exported := log.Export()
	require.Len(t, exported, 2)

	restored := NewOperationLog()
	restored.Import(exported)

	// after a restart nothing is in flight, so the full set drains again
	batch := restored.DequeueBatch(10)
	assert.Len(t, batch, 2)
}

func TestOperationLog_ImportDeduplicates(t *testing.T) {
	log := NewOperationLog()
	log.Import([]models.PendingOperation{
		op("op-1", "e-1", models.OpCreate),
		op("op-1", "e-1", models.OpCreate),
		op("op-2", "e-2", models.OpCreate),
	})

	assert.Equal(t, 2, log.Pending())
}

func TestOperationLog_HasPendingFor(t *testing.T) {
	log := NewOperationLog()
	log.Enqueue(op("op-1", "e-1", models.OpCreate))
	log.Enqueue(op("op-2", "e-1", models.OpUpdate))

	assert.True(t, log.HasPendingFor("e-1"))
	assert.False(t, log.HasPendingFor("e-2"))

	require.NoError(t, log.Ack("op-1"))
	assert.True(t, log.HasPendingFor("e-1"))

	require.NoError(t, log.Ack("op-2"))
	assert.False(t, log.HasPendingFor("e-1"))
}

func TestOperationLog_ReleaseKeepsRetryBudget(t *testing.T) {
	l := NewOperationLog()
	l.Enqueue(op("op-1", "e-1", models.OpCreate))

	batch := l.DequeueBatch(4)
	require.Len(t, batch, 1)
	assert.Empty(t, l.DequeueBatch(4))

	l.Release("op-1")

	batch = l.DequeueBatch(4)
	require.Len(t, batch, 1)
	assert.Equal(t, "op-1", batch[0].OperationID)
	assert.Zero(t, batch[0].RetryCount)
}
