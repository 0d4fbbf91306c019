package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/internal/store"
	"github.com/ledgerkeep/ledgersync/internal/utils"
	"github.com/ledgerkeep/ledgersync/models"
)

// resolver applies resolution policies to recorded conflicts.
//
// Resolution always swaps whole payloads. Client-wins and manual branches
// re-enter the delivery cycle as a fresh update stamped with the server's
// version, so the next sync attempt is causally valid; server-wins writes
// the server state straight into the record store, since nothing needs to
// go back over the wire.
type resolver struct {
	records   *store.RecordStore
	oplog     *store.OperationLog
	conflicts *store.ConflictSet
	cfg       config.EngineSync
	opids     *utils.UUIDGenerator
	logger    *logger.Logger

	// schedule re-arms the coordinator after a branch that queued a new
	// operation; notify fans the resolved entity out to subscribers.
	schedule func()
	notify   func(entityID string)
	now      func() time.Time
}

func newResolver(
	records *store.RecordStore,
	oplog *store.OperationLog,
	conflicts *store.ConflictSet,
	cfg config.EngineSync,
	schedule func(),
	notify func(entityID string),
	log *logger.Logger,
) *resolver {
	return &resolver{
		records:   records,
		oplog:     oplog,
		conflicts: conflicts,
		cfg:       cfg,
		opids:     utils.NewUUIDGenerator(),
		schedule:  schedule,
		notify:    notify,
		now:       time.Now,
		logger:    log,
	}
}

// ListConflicts returns every unresolved conflict, oldest first.
func (r *resolver) ListConflicts() []models.Conflict {
	return r.conflicts.List()
}

// Resolve applies policy to the conflict recorded for entityID and clears
// it. Returns [store.ErrConflictNotFound] when no conflict exists.
func (r *resolver) Resolve(entityID string, policy models.ResolutionPolicy) error {
	conflict, err := r.conflicts.Get(entityID)
	if err != nil {
		return fmt.Errorf("resolve conflict for %s: %w", entityID, err)
	}

	switch policy.Kind {
	case models.PolicyServerWins:
		r.adoptServerState(conflict)
	case models.PolicyClientWins:
		r.requeue(conflict, conflict.ClientPayload)
	case models.PolicyManual:
		if policy.Payload == nil {
			return ErrManualPayloadRequired
		}
		r.requeue(conflict, policy.Payload)
	default:
		return fmt.Errorf("policy %q: %w", policy.Kind, ErrUnknownPolicy)
	}

	if err = r.conflicts.Remove(entityID); err != nil {
		return fmt.Errorf("clear conflict for %s: %w", entityID, err)
	}
	r.notify(entityID)

	r.logger.Info().
		Str("func", "resolver.Resolve").
		Str("entity_id", entityID).
		Str("policy", string(policy.Kind)).
		Msg("conflict resolved")

	return nil
}

// adoptServerState writes the server's payload and version directly into
// the record store. Nothing is queued: the server already holds this state.
func (r *resolver) adoptServerState(conflict models.Conflict) {
	now := r.now()
	r.records.PutResolved(models.Record{
		ID:        conflict.EntityID,
		Version:   conflict.ServerVersion,
		Payload:   conflict.ServerPayload,
		SyncState: models.StateSynced,
		UpdatedAt: &now,
	})
}

// requeue stores payload locally on top of the server's version and queues
// a fresh update operation carrying it.
func (r *resolver) requeue(conflict models.Conflict, payload json.RawMessage) {
	now := r.now()
	r.records.PutResolved(models.Record{
		ID:        conflict.EntityID,
		Version:   conflict.ServerVersion,
		Payload:   payload,
		SyncState: models.StatePendingLocal,
		UpdatedAt: &now,
	})

	r.oplog.Enqueue(models.PendingOperation{
		OperationID:   r.opids.Generate(),
		Kind:          models.OpUpdate,
		EntityID:      conflict.EntityID,
		Payload:       payload,
		ClientVersion: conflict.ServerVersion,
		CreatedAt:     now,
		MaxRetries:    r.cfg.MaxRetries,
	})
	r.schedule()
}

// conflictingFields computes the best-effort list of top-level JSON keys
// whose values differ between the two payloads. Display sugar only; any
// payload that is not a JSON object yields nil.
func conflictingFields(client, server json.RawMessage) []string {
	var clientObj, serverObj map[string]any
	if err := json.Unmarshal(client, &clientObj); err != nil {
		return nil
	}
	if err := json.Unmarshal(server, &serverObj); err != nil {
		return nil
	}

	fields := make(map[string]struct{})
	for key, cv := range clientObj {
		sv, ok := serverObj[key]
		if !ok || !reflect.DeepEqual(cv, sv) {
			fields[key] = struct{}{}
		}
	}
	for key := range serverObj {
		if _, ok := clientObj[key]; !ok {
			fields[key] = struct{}{}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for key := range fields {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
