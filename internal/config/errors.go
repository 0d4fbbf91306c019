package config

import "errors"

// Validation errors returned by [EngineConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidRemoteConfigs indicates invalid remote endpoint settings
	// (for example, missing base URL or zero request timeout).
	ErrInvalidRemoteConfigs = errors.New("invalid remote configuration")
	// ErrInvalidStorageConfigs indicates invalid snapshot storage settings
	// (for example, an unknown backend or a backend with no location).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidSyncConfigs indicates invalid sync coordinator settings
	// (for example, non-positive batch size or retry budget).
	ErrInvalidSyncConfigs = errors.New("invalid sync configuration")
	// ErrInvalidNetworkConfigs indicates invalid connectivity monitor
	// settings (for example, zero probe interval).
	ErrInvalidNetworkConfigs = errors.New("invalid network configuration")
)
