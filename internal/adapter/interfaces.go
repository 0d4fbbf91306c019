package adapter

import (
	"context"

	"github.com/ledgerkeep/ledgersync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// SyncGateway is the outbound boundary to the authoritative remote store.
//
// PushBatch delivers one ordered batch of pending operations and returns the
// server's per-operation verdicts in the same order. Transport-level
// failures (unreachable host, timeout, 5xx) are returned as errors and are
// treated by the coordinator as retryable for every operation in the batch;
// per-operation outcomes, including rejections, arrive inside the response.
//
// Health performs a cheap reachability probe against the remote endpoint.
type SyncGateway interface {
	PushBatch(ctx context.Context, req models.SyncRequest) (models.SyncResponse, error)
	Health(ctx context.Context) error
}
