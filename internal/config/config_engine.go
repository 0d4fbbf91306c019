package config

import (
	"fmt"
	"time"
)

// Snapshot storage backends accepted by [EngineStorage.Backend].
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// EngineRemote holds network settings used by the sync transport layer.
type EngineRemote struct {
	// BaseURL is the root URL of the remote sync endpoint.
	BaseURL string
	// HealthPath is the connectivity probe path relative to BaseURL.
	HealthPath string
	// RequestTimeout is the default timeout for outbound sync requests.
	RequestTimeout time.Duration
}

// EngineStorage groups snapshot persistence settings.
type EngineStorage struct {
	// Backend selects the persistence adapter: "file" or "sqlite".
	Backend string
	// FilePath is the snapshot document location for the file backend.
	FilePath string
	// Compress enables snappy compression for the file backend.
	Compress bool
	// DSN is the SQLite location for the sqlite backend.
	DSN string
}

// EngineSync contains sync coordinator tuning values.
type EngineSync struct {
	// BatchSize caps operations per sync request.
	BatchSize int
	// MaxRetries bounds delivery attempts per operation.
	MaxRetries int
	// Debounce is the coalescing window after a local mutation.
	Debounce time.Duration
	// Interval is the periodic sync cadence while online.
	Interval time.Duration
	// BackoffBase and BackoffCap bound the exponential retry delay.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// EngineNetwork contains connectivity monitor settings.
type EngineNetwork struct {
	// ProbeInterval defines how often the health endpoint is probed.
	ProbeInterval time.Duration
}

// EngineConfig is the top-level engine configuration assembled from
// [StructuredConfig].
type EngineConfig struct {
	// Remote contains transport addresses and timeouts.
	Remote EngineRemote
	// Storage contains snapshot persistence settings.
	Storage EngineStorage
	// Sync contains coordinator tuning values.
	Sync EngineSync
	// Network contains connectivity monitor settings.
	Network EngineNetwork
	// LogPath is the optional engine log file location.
	LogPath string
}

// GetEngineConfig builds and validates the engine config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the engine runtime, and validates the resulting [EngineConfig].
func GetEngineConfig() (*EngineConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	engineCfg := &EngineConfig{
		Remote: EngineRemote{
			BaseURL:        cfg.Remote.BaseURL,
			HealthPath:     cfg.Remote.HealthPath,
			RequestTimeout: cfg.Remote.RequestTimeout,
		},
		Storage: EngineStorage{
			Backend:  cfg.Storage.Backend,
			FilePath: cfg.Storage.File.Path,
			Compress: cfg.Storage.File.Compress,
			DSN:      cfg.Storage.DB.DSN,
		},
		Sync: EngineSync{
			BatchSize:   cfg.Sync.BatchSize,
			MaxRetries:  cfg.Sync.MaxRetries,
			Debounce:    cfg.Sync.Debounce,
			Interval:    cfg.Sync.Interval,
			BackoffBase: cfg.Sync.BackoffBase,
			BackoffCap:  cfg.Sync.BackoffCap,
		},
		Network: EngineNetwork{ProbeInterval: cfg.Network.ProbeInterval},
		LogPath: cfg.LogPath,
	}

	return engineCfg, engineCfg.validate()
}
