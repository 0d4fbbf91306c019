package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerkeep/ledgersync/internal/adapter"
	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/internal/store"
	"github.com/ledgerkeep/ledgersync/models"
)

// State is the coordinator's position in its sync state machine.
type State string

const (
	StateIdle            State = "idle"
	StateSyncing         State = "syncing"
	StatePartialFailure  State = "partial_failure"
	StateConflictPending State = "conflict_pending"
)

// coordinator drains the pending operation log against the remote store.
//
// Exactly one sync pass runs at a time; the state flag is the lock. Trigger
// requests arriving while a pass runs are coalesced into a single follow-up
// pass. The debounce timer guarantees at most one scheduled-but-not-started
// request is outstanding.
type coordinator struct {
	records   *store.RecordStore
	oplog     *store.OperationLog
	conflicts *store.ConflictSet
	gateway   adapter.SyncGateway
	cfg       config.EngineSync
	logger    *logger.Logger

	// persist is the engine's best-effort snapshot hook, called after every
	// state-changing batch. notify fans a changed entity out to subscribers.
	persist func(ctx context.Context)
	notify  func(entityID string)
	now     func() time.Time

	mu           sync.Mutex
	state        State
	rerun        bool
	suspended    bool
	failStreak   int
	lastSyncedAt *time.Time
	debounce     *time.Timer
	backoff      *time.Timer
	runCtx       context.Context

	wg sync.WaitGroup
}

func newCoordinator(
	records *store.RecordStore,
	oplog *store.OperationLog,
	conflicts *store.ConflictSet,
	gateway adapter.SyncGateway,
	cfg config.EngineSync,
	persist func(ctx context.Context),
	notify func(entityID string),
	log *logger.Logger,
) *coordinator {
	return &coordinator{
		records:   records,
		oplog:     oplog,
		conflicts: conflicts,
		gateway:   gateway,
		cfg:       cfg,
		persist:   persist,
		notify:    notify,
		now:       time.Now,
		state:     StateIdle,
		logger:    log,
	}
}

// Run implements workers.Worker. It anchors asynchronous trigger sources to
// ctx and starts the periodic sync ticker. The goroutine exits, stopping any
// armed timers, when ctx is cancelled.
func (c *coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		interval := c.cfg.Interval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				c.stopTimers()
				return
			case <-t.C:
				c.TriggerAsync("interval")
			}
		}
	}()
}

// Wait blocks until every pass and background goroutine has finished.
func (c *coordinator) Wait() {
	c.wg.Wait()
}

// State returns the coordinator's current state machine position.
func (c *coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSyncedAt returns the completion time of the last fully clean pass.
func (c *coordinator) LastSyncedAt() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSyncedAt == nil {
		return nil
	}
	ts := *c.lastSyncedAt
	return &ts
}

func (c *coordinator) setLastSyncedAt(ts *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSyncedAt = ts
}

// Suspend stops automatic trigger sources from starting new passes. A pass
// already in flight finishes or fails naturally.
func (c *coordinator) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = true
}

// Resume re-enables automatic triggers.
func (c *coordinator) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suspended = false
}

// ScheduleSoon arms the debounce timer. Repeated calls within the window
// are coalesced: at most one scheduled-but-not-yet-started request exists
// at any time.
func (c *coordinator) ScheduleSoon() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debounce != nil {
		return
	}

	debounce := c.cfg.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	c.debounce = time.AfterFunc(debounce, func() {
		c.mu.Lock()
		c.debounce = nil
		c.mu.Unlock()
		c.TriggerAsync("debounce")
	})
}

// TriggerAsync starts a sync pass in the background unless triggers are
// suspended or the engine is shutting down. A pass already running absorbs
// the trigger as a follow-up request.
func (c *coordinator) TriggerAsync(reason string) {
	c.mu.Lock()
	ctx := c.runCtx
	suspended := c.suspended
	c.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	if suspended {
		c.logger.Debug().
			Str("func", "coordinator.TriggerAsync").
			Str("reason", reason).
			Msg("trigger skipped: scheduling suspended")
		return
	}

	c.logger.Debug().
		Str("func", "coordinator.TriggerAsync").
		Str("reason", reason).
		Msg("sync pass triggered")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.SyncPass(ctx)
	}()
}

// SyncPass drains the log in batches and applies server verdicts. Returns
// [ErrSyncInProgress] when another pass holds the state flag; the request is
// remembered and a follow-up pass starts once the current one completes.
//
// The pass itself never fails: every per-operation outcome is absorbed into
// the returned SyncResult and the log's per-entry state.
func (c *coordinator) SyncPass(ctx context.Context) (models.SyncResult, error) {
	c.mu.Lock()
	if c.state == StateSyncing {
		c.rerun = true
		c.mu.Unlock()
		return models.SyncResult{}, ErrSyncInProgress
	}
	c.state = StateSyncing
	c.mu.Unlock()

	start := c.now()
	var res models.SyncResult

	for ctx.Err() == nil {
		batch := c.oplog.DequeueBatch(c.cfg.BatchSize)
		if len(batch) == 0 {
			break
		}

		abort := c.processBatch(ctx, batch, &res)
		c.persist(ctx)
		if abort {
			break
		}
	}

	res.Duration = c.now().Sub(start)
	res.Success = res.ErrorCount == 0 && res.ConflictCount == 0

	c.mu.Lock()
	switch {
	case res.ErrorCount > 0:
		c.state = StatePartialFailure
		c.failStreak++
		c.scheduleBackoffLocked()
	case res.ConflictCount > 0:
		c.state = StateConflictPending
		c.failStreak = 0
	default:
		c.state = StateIdle
		c.failStreak = 0
		if c.oplog.Pending() == 0 {
			ts := c.now()
			c.lastSyncedAt = &ts
		}
	}
	rerun := c.rerun
	c.rerun = false
	c.mu.Unlock()

	c.persist(ctx)

	c.logger.Info().
		Str("func", "coordinator.SyncPass").
		Int("synced", res.SyncedCount).
		Int("conflicts", res.ConflictCount).
		Int("errors", res.ErrorCount).
		Dur("duration", res.Duration).
		Msg("sync pass finished")

	if rerun {
		c.TriggerAsync("coalesced")
	}
	return res, nil
}

// processBatch sends one batch and settles every operation in it. Returns
// true when the pass must stop: a transport-level failure makes the whole
// batch retryable, and later batches wait until the retry resolves.
func (c *coordinator) processBatch(ctx context.Context, batch []models.PendingOperation, res *models.SyncResult) bool {
	req := models.SyncRequest{Operations: make([]models.SyncOperation, 0, len(batch))}
	for _, op := range batch {
		req.Operations = append(req.Operations, models.SyncOperation{
			OperationID:   op.OperationID,
			EntityID:      op.EntityID,
			Kind:          op.Kind,
			Payload:       op.Payload,
			ClientVersion: op.ClientVersion,
		})
	}

	resp, err := c.gateway.PushBatch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// shutdown, not a delivery failure: the batch goes back to the
			// log untouched and is redelivered after the next start
			for _, op := range batch {
				c.oplog.Release(op.OperationID)
			}
			c.logger.Info().
				Str("func", "coordinator.processBatch").
				Int("batch_size", len(batch)).
				Msg("pass abandoned, batch released for redelivery")
			return true
		}
		c.logger.Warn().
			Err(err).
			Str("func", "coordinator.processBatch").
			Int("batch_size", len(batch)).
			Msg("batch delivery failed, marking operations for retry")
		for _, op := range batch {
			c.retryOp(op, err, res)
		}
		return true
	}

	byID := make(map[string]models.PendingOperation, len(batch))
	for _, op := range batch {
		byID[op.OperationID] = op
	}

	settled := make(map[string]struct{}, len(batch))
	for _, verdict := range resp.Results {
		op, ok := byID[verdict.OperationID]
		if !ok {
			c.logger.Warn().
				Str("func", "coordinator.processBatch").
				Str("operation_id", verdict.OperationID).
				Msg("verdict for unknown operation ignored")
			continue
		}
		settled[op.OperationID] = struct{}{}

		switch verdict.Verdict {
		case models.VerdictApplied:
			c.applyVerdict(op, verdict)
			res.SyncedCount++
		case models.VerdictConflict:
			c.conflictVerdict(op, verdict)
			res.ConflictCount++
		case models.VerdictRejected:
			c.rejectVerdict(op, verdict, res)
		default:
			c.retryOp(op, fmt.Errorf("verdict %q: %w", verdict.Verdict, adapter.ErrBadSyncResponse), res)
		}
	}

	// operations the response silently dropped stay deliverable
	for _, op := range batch {
		if _, ok := settled[op.OperationID]; !ok {
			c.retryOp(op, adapter.ErrBadSyncResponse, res)
		}
	}

	return false
}

func (c *coordinator) applyVerdict(op models.PendingOperation, verdict models.OperationResult) {
	_ = c.oplog.Ack(op.OperationID)

	if op.Kind == models.OpDelete {
		_ = c.records.Delete(op.EntityID)
	} else {
		c.records.MarkSynced(op.EntityID, verdict.NewVersion)
		if c.oplog.HasPendingFor(op.EntityID) {
			c.records.MarkPendingLocal(op.EntityID)
		}
	}
	c.notify(op.EntityID)
}

func (c *coordinator) conflictVerdict(op models.PendingOperation, verdict models.OperationResult) {
	clientPayload := op.Payload
	if clientPayload == nil {
		if rec, err := c.records.Get(op.EntityID); err == nil {
			clientPayload = rec.Payload
		}
	}

	c.conflicts.Add(models.Conflict{
		EntityID:          op.EntityID,
		ClientVersion:     op.ClientVersion,
		ServerVersion:     verdict.ServerVersion,
		ClientPayload:     clientPayload,
		ServerPayload:     verdict.ServerPayload,
		ConflictingFields: conflictingFields(clientPayload, verdict.ServerPayload),
		DetectedAt:        c.now(),
	})

	// the losing operation is settled; resolution re-queues a fresh one
	_ = c.oplog.Ack(op.OperationID)
	c.records.MarkConflicted(op.EntityID)
	c.notify(op.EntityID)

	c.logger.Info().
		Str("func", "coordinator.conflictVerdict").
		Str("entity_id", op.EntityID).
		Int64("client_version", op.ClientVersion).
		Int64("server_version", verdict.ServerVersion).
		Msg("version conflict recorded")
}

func (c *coordinator) rejectVerdict(op models.PendingOperation, verdict models.OperationResult, res *models.SyncResult) {
	cause := fmt.Errorf("rejected (%s): %s", verdict.ErrorKind, verdict.ErrorMessage)

	if verdict.ErrorKind.Retryable() {
		c.retryOp(op, cause, res)
		return
	}

	_ = c.oplog.MarkTerminal(op.OperationID, cause)
	res.ErrorCount++
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", op.OperationID, cause))

	c.logger.Warn().
		Str("func", "coordinator.rejectVerdict").
		Str("operation_id", op.OperationID).
		Str("error_kind", string(verdict.ErrorKind)).
		Msg("operation rejected permanently")
}

func (c *coordinator) retryOp(op models.PendingOperation, cause error, res *models.SyncResult) {
	terminal, err := c.oplog.MarkRetry(op.OperationID, cause)
	if err != nil {
		return
	}

	res.ErrorCount++
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", op.OperationID, cause))

	if terminal {
		c.logger.Warn().
			Str("func", "coordinator.retryOp").
			Str("operation_id", op.OperationID).
			Int("max_retries", op.MaxRetries).
			Msg("retry budget exhausted, operation is terminal")
	}
}

// scheduleBackoffLocked arms (or re-arms) the backoff re-trigger after a
// partial failure. Delay doubles with each consecutive failed pass, bounded
// by the configured cap. Caller holds c.mu.
func (c *coordinator) scheduleBackoffLocked() {
	base := c.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	maxDelay := c.cfg.BackoffCap
	if maxDelay < base {
		maxDelay = base
	}

	delay := base
	for i := 1; i < c.failStreak; i++ {
		delay *= 2
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}

	if c.backoff != nil {
		c.backoff.Stop()
	}
	c.backoff = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.backoff = nil
		c.mu.Unlock()
		c.TriggerAsync("backoff")
	})

	c.logger.Debug().
		Str("func", "coordinator.scheduleBackoffLocked").
		Dur("delay", delay).
		Int("fail_streak", c.failStreak).
		Msg("backoff re-trigger scheduled")
}

func (c *coordinator) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	if c.backoff != nil {
		c.backoff.Stop()
		c.backoff = nil
	}
}
