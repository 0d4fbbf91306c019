package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/models"
)

const (
	defaultHealthPath = "/api/health"
	syncBatchPath     = "/api/sync/batch"
)

type httpSyncGateway struct {
	client     *resty.Client
	healthPath string
	logger     *logger.Logger
}

// NewHTTPSyncGateway builds the resty-backed gateway for the configured
// remote endpoint. Every request carries the configured timeout; expiry is
// surfaced as [ErrRequestTimeout] so the coordinator can treat the whole
// batch as retryable.
func NewHTTPSyncGateway(cfg config.EngineRemote, log *logger.Logger) SyncGateway {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = defaultHealthPath
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &httpSyncGateway{client: cli, healthPath: healthPath, logger: log}
}

func (h *httpSyncGateway) PushBatch(ctx context.Context, req models.SyncRequest) (models.SyncResponse, error) {
	req.Length = len(req.Operations)

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(syncBatchPath)
	if err != nil {
		return models.SyncResponse{}, mapTransportError(err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.SyncResponse{}, err
	}

	var sr models.SyncResponse
	if err = json.Unmarshal(resp.Body(), &sr); err != nil {
		return models.SyncResponse{}, fmt.Errorf("decode sync response: %w", ErrBadSyncResponse)
	}
	if len(sr.Results) != len(req.Operations) {
		h.logger.Warn().
			Str("func", "httpSyncGateway.PushBatch").
			Int("sent", len(req.Operations)).
			Int("received", len(sr.Results)).
			Msg("sync response length does not match request")
		return models.SyncResponse{}, fmt.Errorf("response carries %d results for %d operations: %w",
			len(sr.Results), len(req.Operations), ErrBadSyncResponse)
	}

	return sr, nil
}

func (h *httpSyncGateway) Health(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get(h.healthPath)
	if err != nil {
		return mapTransportError(err)
	}
	return mapHTTPError(resp)
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return fmt.Errorf("%w: %s", ErrRequestTimeout, err)
	}
	return fmt.Errorf("%w: %s", ErrServerUnavailable, err)
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}

	if code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: http %d: %s", ErrServerUnavailable, code, body)
	}
	if code == http.StatusRequestTimeout {
		return fmt.Errorf("%w: http %d: %s", ErrRequestTimeout, code, body)
	}
	return fmt.Errorf("http %d: %s", code, body)
}
