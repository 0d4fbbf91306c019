// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/models"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) SyncGateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPSyncGateway(config.EngineRemote{
		BaseURL:        srv.URL,
		RequestTimeout: timeout,
	}, logger.Nop())
}

func sampleRequest() models.SyncRequest {
	return models.SyncRequest{
		Operations: []models.SyncOperation{
			{
				OperationID:   "op-1",
				EntityID:      "e-1",
				Kind:          models.OpCreate,
				Payload:       json.RawMessage(`{"title":"rent"}`),
				ClientVersion: 0,
			},
			{
				OperationID:   "op-2",
				EntityID:      "e-2",
				Kind:          models.OpDelete,
				ClientVersion: 4,
			},
		},
	}
}

func TestHTTPSyncGateway_PushBatch(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sync/batch", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Length)
		require.Len(t, req.Operations, 2)

		resp := models.SyncResponse{
			Results: []models.OperationResult{
				{OperationID: "op-1", Verdict: models.VerdictApplied, NewVersion: 1},
				{OperationID: "op-2", Verdict: models.VerdictApplied},
			},
			Length: 2,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}, 0)

	resp, err := gw.PushBatch(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.VerdictApplied, resp.Results[0].Verdict)
	assert.Equal(t, int64(1), resp.Results[0].NewVersion)
}

func TestHTTPSyncGateway_PushBatchLengthMismatch(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		resp := models.SyncResponse{
			Results: []models.OperationResult{
				{OperationID: "op-1", Verdict: models.VerdictApplied, NewVersion: 1},
			},
			Length: 1,
		}
		json.NewEncoder(w).Encode(resp)
	}, 0)

	_, err := gw.PushBatch(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrBadSyncResponse)
}

func TestHTTPSyncGateway_PushBatchMalformedBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}, 0)

	_, err := gw.PushBatch(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrBadSyncResponse)
}

func TestHTTPSyncGateway_PushBatchServerError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, 0)

	_, err := gw.PushBatch(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrServerUnavailable)
}

func TestHTTPSyncGateway_PushBatchTimeout(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	_, err := gw.PushBatch(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestHTTPSyncGateway_PushBatchConnectionRefused(t *testing.T) {
	gw := NewHTTPSyncGateway(config.EngineRemote{
		BaseURL: "http://127.0.0.1:1",
	}, logger.Nop())

	_, err := gw.PushBatch(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrServerUnavailable)
}

func TestHTTPSyncGateway_Health(t *testing.T) {
	var gotPath string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}, 0)

	require.NoError(t, gw.Health(context.Background()))
	assert.Equal(t, "/api/health", gotPath)
}

func TestHTTPSyncGateway_HealthUnavailable(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}, 0)

	assert.ErrorIs(t, gw.Health(context.Background()), ErrServerUnavailable)
}
