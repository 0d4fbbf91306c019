package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerkeep/ledgersync/internal/adapter"
	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/internal/netmon"
	"github.com/ledgerkeep/ledgersync/internal/persist"
	"github.com/ledgerkeep/ledgersync/internal/store"
	"github.com/ledgerkeep/ledgersync/internal/utils"
	"github.com/ledgerkeep/ledgersync/internal/workers"
	"github.com/ledgerkeep/ledgersync/models"
)

// Engine is the public surface of the synchronization engine, consumed by
// the embedding presentation layer.
//
// The engine exclusively owns the record store, the pending operation log,
// and the conflict set; callers receive immutable snapshots and submit
// mutation requests, never touching internal state directly.
type Engine struct {
	cfg    *config.EngineConfig
	logger *logger.Logger

	records   *store.RecordStore
	oplog     *store.OperationLog
	conflicts *store.ConflictSet

	snapshots persist.Adapter
	gateway   adapter.SyncGateway
	monitor   *netmon.Monitor
	coord     *coordinator
	resolver  *resolver
	opids     *utils.UUIDGenerator

	subMu sync.Mutex
	subs  map[string][]chan models.Record

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a full engine from configuration: resty gateway, snapshot
// backend, connectivity monitor, coordinator, and resolver.
func New(cfg *config.EngineConfig, log *logger.Logger) (*Engine, error) {
	snapshots, err := persist.New(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("create snapshot backend: %w", err)
	}

	gateway := adapter.NewHTTPSyncGateway(cfg.Remote, log)
	return NewWithDeps(cfg, snapshots, gateway, log), nil
}

// NewWithDeps wires an engine around externally constructed persistence and
// transport. Tests use it with an in-memory filesystem and a fake gateway.
func NewWithDeps(cfg *config.EngineConfig, snapshots persist.Adapter, gateway adapter.SyncGateway, log *logger.Logger) *Engine {
	e := &Engine{
		cfg:       cfg,
		logger:    log,
		records:   store.NewRecordStore(),
		oplog:     store.NewOperationLog(),
		conflicts: store.NewConflictSet(),
		snapshots: snapshots,
		gateway:   gateway,
		opids:     utils.NewUUIDGenerator(),
		subs:      make(map[string][]chan models.Record),
	}

	e.monitor = netmon.New(gateway, cfg.Network.ProbeInterval, log)
	e.coord = newCoordinator(e.records, e.oplog, e.conflicts, gateway, cfg.Sync,
		e.persistNow, e.publish, log)
	e.resolver = newResolver(e.records, e.oplog, e.conflicts, cfg.Sync,
		e.coord.ScheduleSoon, e.publish, log)

	return e
}

// Start restores the persisted snapshot and launches the background
// workers: the periodic sync ticker, the connectivity monitor, and the
// transition watcher. Must be called exactly once, before any mutation is
// submitted; the restore happens first so no request ever sees pre-restart
// state.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.started {
		return nil
	}

	snapshot, err := e.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	e.records.Import(snapshot.Records)
	e.oplog.Import(snapshot.PendingOperations)
	e.conflicts.Import(snapshot.Conflicts)
	e.coord.setLastSyncedAt(snapshot.LastSyncedAt)

	e.logger.Info().
		Str("func", "Engine.Start").
		Int("records", len(snapshot.Records)).
		Int("pending", len(snapshot.PendingOperations)).
		Int("conflicts", len(snapshot.Conflicts)).
		Msg("snapshot restored")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	workers.New(e.coord, e.monitor, &transitionWatcher{engine: e}).Run(runCtx)

	if e.oplog.Pending() > 0 {
		e.coord.TriggerAsync("startup backlog")
	}

	e.started = true
	return nil
}

// transitionWatcher reacts to connectivity transitions: offline suspends
// scheduling (an in-flight pass finishes naturally), online resumes it and
// immediately triggers a pass when work is waiting.
type transitionWatcher struct {
	engine *Engine
}

func (w *transitionWatcher) Run(ctx context.Context) {
	e := w.engine
	ch := e.monitor.Subscribe()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case online := <-ch:
				if !online {
					e.coord.Suspend()
					continue
				}
				e.coord.Resume()
				if e.oplog.Pending() > 0 || e.conflicts.Len() > 0 {
					e.coord.TriggerAsync("network restored")
				}
			}
		}
	}()
}

// Submit records a local mutation: the record store is updated
// optimistically, a pending operation is appended to the log, and a
// debounced sync pass is scheduled. Returns the generated operation id.
//
// A Create with an empty entityID gets a generated one. Mutating an entity
// with an unresolved conflict fails with [store.ErrConflictPending] until
// the conflict is resolved.
func (e *Engine) Submit(ctx context.Context, kind models.OperationKind, entityID string, payload json.RawMessage) (string, error) {
	if e.isClosed() {
		return "", ErrEngineClosed
	}

	now := time.Now().UTC()
	var rec models.Record
	var clientVersion int64

	switch kind {
	case models.OpCreate:
		if entityID == "" {
			entityID = e.opids.Generate()
		}
		if _, err := e.records.Get(entityID); err == nil {
			return "", fmt.Errorf("create %s: %w", entityID, ErrRecordExists)
		}
		rec = models.Record{
			ID:        entityID,
			Version:   0,
			Payload:   payload,
			SyncState: models.StatePendingLocal,
			UpdatedAt: &now,
		}

	case models.OpUpdate, models.OpBulkUpdate:
		existing, err := e.records.Get(entityID)
		if err != nil {
			return "", fmt.Errorf("update %s: %w", entityID, err)
		}
		clientVersion = existing.Version
		rec = existing
		rec.Payload = payload
		rec.SyncState = models.StatePendingLocal
		rec.UpdatedAt = &now

	case models.OpDelete:
		existing, err := e.records.Get(entityID)
		if err != nil {
			return "", fmt.Errorf("delete %s: %w", entityID, err)
		}
		clientVersion = existing.Version
		rec = existing
		rec.SyncState = models.StatePendingLocal
		rec.UpdatedAt = &now
		payload = nil

	default:
		return "", fmt.Errorf("kind %q: %w", kind, ErrUnknownOperationKind)
	}

	if err := e.records.Put(rec); err != nil {
		return "", fmt.Errorf("store %s: %w", entityID, err)
	}

	op := models.PendingOperation{
		OperationID:   e.opids.Generate(),
		Kind:          kind,
		EntityID:      entityID,
		Payload:       payload,
		ClientVersion: clientVersion,
		CreatedAt:     now,
		MaxRetries:    e.cfg.Sync.MaxRetries,
	}
	e.oplog.Enqueue(op)

	e.persistNow(ctx)
	e.publish(entityID)
	e.coord.ScheduleSoon()

	return op.OperationID, nil
}

// Get returns a snapshot of one record.
func (e *Engine) Get(id string) (models.Record, error) {
	return e.records.Get(id)
}

// List returns snapshots of every known record, ordered by id.
func (e *Engine) List() []models.Record {
	return e.records.ListAll()
}

// Subscribe returns a channel receiving a fresh snapshot of the entity
// after every engine-side change. Delivery is latest-wins: a slow consumer
// sees the newest state, not a backlog of intermediates. The channel closes
// when the engine closes; subscribing after Close yields an already closed
// channel.
func (e *Engine) Subscribe(entityID string) <-chan models.Record {
	ch := make(chan models.Record, 1)
	e.subMu.Lock()
	if e.subs == nil {
		e.subMu.Unlock()
		close(ch)
		return ch
	}
	e.subs[entityID] = append(e.subs[entityID], ch)
	e.subMu.Unlock()
	return ch
}

// PendingCount returns the number of operations still awaiting server
// acknowledgment.
func (e *Engine) PendingCount() int {
	return e.oplog.Pending()
}

// TerminalOperations lists operations that exhausted their retries or were
// permanently rejected. They stay visible until discarded or retried.
func (e *Engine) TerminalOperations() []models.PendingOperation {
	return e.oplog.Terminal()
}

// DiscardOperation drops a pending or terminal operation by explicit user
// action. Operations inside an in-flight batch cannot be discarded.
func (e *Engine) DiscardOperation(ctx context.Context, operationID string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := e.oplog.Discard(operationID); err != nil {
		return err
	}
	e.persistNow(ctx)
	return nil
}

// RetryOperation returns a terminal operation to the delivery cycle with a
// fresh retry budget and schedules a pass.
func (e *Engine) RetryOperation(ctx context.Context, operationID string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := e.oplog.RetryTerminal(operationID); err != nil {
		return err
	}
	e.persistNow(ctx)
	e.coord.ScheduleSoon()
	return nil
}

// ListConflicts returns every unresolved conflict, oldest first.
func (e *Engine) ListConflicts() []models.Conflict {
	return e.resolver.ListConflicts()
}

// ResolveConflict applies a resolution policy to the conflict recorded for
// entityID.
func (e *Engine) ResolveConflict(ctx context.Context, entityID string, policy models.ResolutionPolicy) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := e.resolver.Resolve(entityID, policy); err != nil {
		return err
	}
	e.persistNow(ctx)
	return nil
}

// SyncNow runs a sync pass immediately and returns its result. If a pass is
// already running the request coalesces into a follow-up pass and
// [ErrSyncInProgress] is returned.
func (e *Engine) SyncNow(ctx context.Context) (models.SyncResult, error) {
	if e.isClosed() {
		return models.SyncResult{}, ErrEngineClosed
	}
	return e.coord.SyncPass(ctx)
}

// State exposes the coordinator's state machine position.
func (e *Engine) State() State {
	return e.coord.State()
}

// Online reports current connectivity as seen by the monitor.
func (e *Engine) Online() bool {
	return e.monitor.Online()
}

// SetOnline feeds an externally observed connectivity state into the
// monitor, for hosts with their own reachability signal.
func (e *Engine) SetOnline(online bool) {
	e.monitor.SetOnline(online)
}

// LastSyncedAt returns the completion time of the last sync pass that
// drained the log cleanly, or nil if none has happened yet.
func (e *Engine) LastSyncedAt() *time.Time {
	return e.coord.LastSyncedAt()
}

// Close stops scheduling new passes, waits for background work to settle,
// persists a final snapshot, and closes subscriber channels. An in-flight
// network request is abandoned; its operations stay queued for the next
// start.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	e.mu.Unlock()

	e.coord.Suspend()
	if cancel != nil {
		cancel()
	}
	e.coord.Wait()
	e.monitor.Wait()
	e.wg.Wait()

	e.persistNow(ctx)

	e.subMu.Lock()
	for _, chans := range e.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	e.subs = nil
	e.subMu.Unlock()

	e.logger.Info().Str("func", "Engine.Close").Msg("engine closed")
	return nil
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// persistNow saves the full engine snapshot. Best-effort: failures are
// logged and the engine continues in degraded durability until the next
// state-changing event retries the save.
func (e *Engine) persistNow(ctx context.Context) {
	snapshot := models.Snapshot{
		Records:           e.records.Export(),
		PendingOperations: e.oplog.Export(),
		Conflicts:         e.conflicts.Export(),
		LastSyncedAt:      e.coord.LastSyncedAt(),
	}

	if err := e.snapshots.Save(ctx, snapshot); err != nil {
		e.logger.Warn().
			Err(err).
			Str("func", "Engine.persistNow").
			Msg("snapshot save failed, continuing with degraded durability")
	}
}

// publish pushes the entity's current snapshot to its subscribers,
// replacing any undelivered previous snapshot.
func (e *Engine) publish(entityID string) {
	rec, err := e.records.Get(entityID)
	if err != nil {
		return
	}

	e.subMu.Lock()
	chans := e.subs[entityID]
	e.subMu.Unlock()

	for _, ch := range chans {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- rec:
		default:
		}
	}
}
