package store

import (
	"sync"

	"github.com/ledgerkeep/ledgersync/models"
)

// OperationLog is the ordered queue of not-yet-confirmed mutations.
//
// Ordering invariant: operations for the same entity are drained in creation
// order, and a single batch never carries two operations for one entity.
// Operations are not coalesced; every recorded intent reaches the server as
// its own entry, preserving the audit trail.
type OperationLog struct {
	mu       sync.Mutex
	ops      []models.PendingOperation
	known    map[string]struct{}
	inFlight map[string]struct{}
}

// NewOperationLog returns an empty operation log.
func NewOperationLog() *OperationLog {
	return &OperationLog{
		known:    make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
}

// Enqueue appends op to the log. Idempotent on OperationID: re-submitting an
// id already present is a no-op and returns false, so caller-side retries of
// the submit path cannot duplicate intents.
func (l *OperationLog) Enqueue(op models.PendingOperation) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.known[op.OperationID]; ok {
		return false
	}

	l.known[op.OperationID] = struct{}{}
	l.ops = append(l.ops, op.Clone())
	return true
}

// DequeueBatch returns up to maxSize deliverable operations in creation
// order and marks them in flight. Terminal operations are skipped. At most
// one operation per entity is included: later operations for an entity
// already represented in the batch (or already in flight from a previous
// batch) wait for the earlier one to settle, which keeps server-side version
// checks causally ordered.
func (l *OperationLog) DequeueBatch(maxSize int) []models.PendingOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if maxSize <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	for id := range l.inFlight {
		if op, ok := l.find(id); ok {
			seen[op.EntityID] = struct{}{}
		}
	}

	var batch []models.PendingOperation
	for _, op := range l.ops {
		if len(batch) == maxSize {
			break
		}
		if op.Terminal() {
			continue
		}
		if _, ok := l.inFlight[op.OperationID]; ok {
			continue
		}
		if _, ok := seen[op.EntityID]; ok {
			continue
		}
		seen[op.EntityID] = struct{}{}
		l.inFlight[op.OperationID] = struct{}{}
		batch = append(batch, op.Clone())
	}
	return batch
}

// Ack removes the operation after a successful (or conflict-settled) server
// verdict. Returns [ErrOperationNotFound] for unknown ids.
func (l *OperationLog) Ack(operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(operationID)
	if idx < 0 {
		return ErrOperationNotFound
	}

	l.ops = append(l.ops[:idx], l.ops[idx+1:]...)
	delete(l.known, operationID)
	delete(l.inFlight, operationID)
	return nil
}

// Release returns an in-flight operation to the deliverable set without
// recording a delivery attempt. Used when a pass is abandoned by shutdown
// rather than failed by the transport, so restarts never consume retry
// budget.
func (l *OperationLog) Release(operationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, operationID)
}

// MarkRetry records one failed delivery attempt and releases the operation
// for the next pass. When the retry count reaches the operation's budget,
// the operation transitions to terminal automatically. Returns whether the
// operation is now terminal.
func (l *OperationLog) MarkRetry(operationID string, cause error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(operationID)
	if idx < 0 {
		return false, ErrOperationNotFound
	}

	op := &l.ops[idx]
	op.RetryCount++
	delete(l.inFlight, operationID)

	if op.RetryCount >= op.MaxRetries {
		op.TerminalError = errMessage(cause)
		return true, nil
	}
	return false, nil
}

// MarkTerminal removes the operation from the delivery cycle immediately,
// recording cause as its final error. Used for permanent rejections where a
// retry can never succeed.
func (l *OperationLog) MarkTerminal(operationID string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(operationID)
	if idx < 0 {
		return ErrOperationNotFound
	}

	l.ops[idx].TerminalError = errMessage(cause)
	delete(l.inFlight, operationID)
	return nil
}

// Discard removes an operation by explicit user action. Operations that are
// part of an in-flight batch cannot be discarded; [ErrOperationInFlight] is
// returned until the batch settles.
func (l *OperationLog) Discard(operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(operationID)
	if idx < 0 {
		return ErrOperationNotFound
	}
	if _, ok := l.inFlight[operationID]; ok {
		return ErrOperationInFlight
	}

	l.ops = append(l.ops[:idx], l.ops[idx+1:]...)
	delete(l.known, operationID)
	return nil
}

// RetryTerminal returns a terminal operation to the delivery cycle with a
// fresh retry budget.
func (l *OperationLog) RetryTerminal(operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(operationID)
	if idx < 0 {
		return ErrOperationNotFound
	}

	op := &l.ops[idx]
	op.RetryCount = 0
	op.TerminalError = ""
	return nil
}

// HasPendingFor reports whether any non-terminal operation for entityID is
// still queued.
func (l *OperationLog) HasPendingFor(entityID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, op := range l.ops {
		if op.EntityID == entityID && !op.Terminal() {
			return true
		}
	}
	return false
}

// Pending returns the number of operations still eligible for delivery.
func (l *OperationLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, op := range l.ops {
		if !op.Terminal() {
			n++
		}
	}
	return n
}

// Terminal returns snapshots of every operation that exhausted its retries
// or was rejected permanently, in creation order. Terminal operations stay
// visible until discarded or retried by the user.
func (l *OperationLog) Terminal() []models.PendingOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.PendingOperation
	for _, op := range l.ops {
		if op.Terminal() {
			out = append(out, op.Clone())
		}
	}
	return out
}

// Export returns a deep copy of the full log, in creation order, for
// persistence. In-flight markers are deliberately not exported: after a
// restart no batch is in flight.
func (l *OperationLog) Export() []models.PendingOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.PendingOperation, 0, len(l.ops))
	for _, op := range l.ops {
		out = append(out, op.Clone())
	}
	return out
}

// Import replaces the log contents. Used once at engine startup.
func (l *OperationLog) Import(ops []models.PendingOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ops = make([]models.PendingOperation, 0, len(ops))
	l.known = make(map[string]struct{}, len(ops))
	l.inFlight = make(map[string]struct{})
	for _, op := range ops {
		if _, ok := l.known[op.OperationID]; ok {
			continue
		}
		l.known[op.OperationID] = struct{}{}
		l.ops = append(l.ops, op.Clone())
	}
}

func (l *OperationLog) indexOf(operationID string) int {
	for i := range l.ops {
		if l.ops[i].OperationID == operationID {
			return i
		}
	}
	return -1
}

func (l *OperationLog) find(operationID string) (models.PendingOperation, bool) {
	if idx := l.indexOf(operationID); idx >= 0 {
		return l.ops[idx], true
	}
	return models.PendingOperation{}, false
}

func errMessage(err error) string {
	if err == nil {
		return "retries exhausted"
	}
	return err.Error()
}
