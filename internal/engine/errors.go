package engine

import "errors"

var (
	// ErrEngineClosed is returned by every operation after Close.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrSyncInProgress is returned by SyncNow when a pass is already
	// running; the request is coalesced into a follow-up pass.
	ErrSyncInProgress = errors.New("sync pass already in progress")

	// ErrUnknownPolicy is returned by Resolve for a policy kind the
	// resolver does not recognise.
	ErrUnknownPolicy = errors.New("unknown resolution policy")

	// ErrManualPayloadRequired is returned when a manual resolution carries
	// no merged payload.
	ErrManualPayloadRequired = errors.New("manual resolution requires a payload")

	// ErrUnknownOperationKind is returned by Submit for an operation kind
	// the engine does not recognise.
	ErrUnknownOperationKind = errors.New("unknown operation kind")

	// ErrRecordExists is returned by Submit when a create targets an
	// entity id that is already known locally.
	ErrRecordExists = errors.New("record already exists")
)
