// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package engine implements the offline-first synchronization engine.
//
// The engine accepts local mutations immediately, records them as pending
// operations, and reconciles them with the authoritative remote store
// opportunistically: after a debounced quiet period, on a periodic cadence,
// when connectivity returns, or on explicit request. Version mismatches
// reported by the server become conflicts held for policy-based or
// user-driven resolution; they are never merged field by field.
//
// Entry point is [Engine]; the coordinator and resolver are internal moving
// parts wired together by [New].
package engine
