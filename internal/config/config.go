// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// ledgersync engine. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, an
// optional JSON file, and built-in defaults.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Remote holds the address and timeout settings for the authoritative
	// remote store the engine synchronizes against.
	Remote Remote `envPrefix:"REMOTE_"`

	// Storage holds configuration for the durable snapshot backends.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds the tuning knobs of the sync coordinator: batch size,
	// retry budget, debounce and periodic intervals, backoff bounds.
	Sync Sync `envPrefix:"SYNC_"`

	// Network holds the connectivity monitor settings.
	Network Network `envPrefix:"NETWORK_"`

	// LogPath is an optional file path for engine log output. When empty,
	// logs go to stdout.
	// Env: LOG_PATH
	LogPath string `env:"LOG_PATH"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Remote holds settings for the outbound sync transport.
type Remote struct {
	// BaseURL is the root URL of the remote sync endpoint
	// (e.g. "https://api.ledgerkeep.example").
	// Env: REMOTE_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// HealthPath is the path probed by the network availability monitor,
	// relative to BaseURL (e.g. "/api/health").
	// Env: REMOTE_HEALTH_PATH
	HealthPath string `env:"HEALTH_PATH"`

	// RequestTimeout bounds every outbound request; expiry is treated as a
	// retryable failure for the whole batch (e.g. "15s").
	// Env: REMOTE_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage groups the configuration for the durable snapshot backends.
type Storage struct {
	// Backend selects the persistence adapter: "file" or "sqlite".
	// Env: STORAGE_BACKEND
	Backend string `env:"BACKEND"`

	// File holds the file-document backend settings.
	File FileStore `envPrefix:"FILE_"`

	// DB holds the SQLite backend settings.
	DB DB `envPrefix:"DB_"`
}

// FileStore holds settings for the single-document file backend.
type FileStore struct {
	// Path is the snapshot file location
	// (e.g. "~/.ledgerkeep/snapshot.json.sz").
	// Env: STORAGE_FILE_PATH
	Path string `env:"PATH"`

	// Compress enables snappy compression of the snapshot document.
	// Env: STORAGE_FILE_COMPRESS
	Compress bool `env:"COMPRESS"`
}

// DB holds connection settings for the SQLite snapshot backend.
type DB struct {
	// DSN is the SQLite file path or connection string used to open the
	// local database (e.g. "~/.ledgerkeep/ledgersync.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Sync holds the sync coordinator tuning knobs.
type Sync struct {
	// BatchSize is the maximum number of operations per sync request.
	// Env: SYNC_BATCH_SIZE
	BatchSize int `env:"BATCH_SIZE"`

	// MaxRetries is the delivery attempt budget per operation before it is
	// marked terminal.
	// Env: SYNC_MAX_RETRIES
	MaxRetries int `env:"MAX_RETRIES"`

	// Debounce is the quiet period after a local mutation before a sync
	// pass is scheduled; repeated mutations within the window coalesce into
	// one pass (e.g. "2s").
	// Env: SYNC_DEBOUNCE
	Debounce time.Duration `env:"DEBOUNCE"`

	// Interval is the periodic sync cadence while online (e.g. "5m").
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// BackoffBase is the first retry delay after a partial failure; each
	// further retry doubles it (e.g. "1s").
	// Env: SYNC_BACKOFF_BASE
	BackoffBase time.Duration `env:"BACKOFF_BASE"`

	// BackoffCap bounds the exponential retry delay (e.g. "2m").
	// Env: SYNC_BACKOFF_CAP
	BackoffCap time.Duration `env:"BACKOFF_CAP"`
}

// Network holds connectivity monitor settings.
type Network struct {
	// ProbeInterval is how often the availability monitor probes the remote
	// health endpoint (e.g. "30s").
	// Env: NETWORK_PROBE_INTERVAL
	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
}

// GetStructuredConfig loads, merges, and validates the engine configuration
// from all available sources in the following priority order (earlier
// sources win for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
