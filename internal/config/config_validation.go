package config

// validate checks that the final merged [StructuredConfig] satisfies all
// engine invariants before it is used at startup.
//
// Source-level validation is intentionally minimal; the engine view built by
// [GetEngineConfig] performs the meaningful checks once all sources are
// merged and defaults applied.
func (cfg *StructuredConfig) validate() error {
	return nil
}

func (cfg *EngineConfig) validate() error {
	if cfg.Remote.BaseURL == "" || cfg.Remote.RequestTimeout <= 0 {
		return ErrInvalidRemoteConfigs
	}

	switch cfg.Storage.Backend {
	case BackendFile:
		if cfg.Storage.FilePath == "" {
			return ErrInvalidStorageConfigs
		}
	case BackendSQLite:
		if cfg.Storage.DSN == "" {
			return ErrInvalidStorageConfigs
		}
	default:
		return ErrInvalidStorageConfigs
	}

	if cfg.Sync.BatchSize <= 0 || cfg.Sync.MaxRetries <= 0 {
		return ErrInvalidSyncConfigs
	}
	if cfg.Sync.BackoffBase <= 0 || cfg.Sync.BackoffCap < cfg.Sync.BackoffBase {
		return ErrInvalidSyncConfigs
	}

	if cfg.Network.ProbeInterval <= 0 {
		return ErrInvalidNetworkConfigs
	}

	return nil
}
