package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "https://api.ledgerkeep.example")
	t.Setenv("REMOTE_REQUEST_TIMEOUT", "20s")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("STORAGE_DB_DATABASE_URI", "/tmp/ledgersync.db")
	t.Setenv("STORAGE_FILE_COMPRESS", "true")
	t.Setenv("SYNC_BATCH_SIZE", "50")
	t.Setenv("SYNC_DEBOUNCE", "500ms")
	t.Setenv("NETWORK_PROBE_INTERVAL", "1m")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "https://api.ledgerkeep.example", cfg.Remote.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/ledgersync.db", cfg.Storage.DB.DSN)
	assert.True(t, cfg.Storage.File.Compress)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.Debounce)
	assert.Equal(t, time.Minute, cfg.Network.ProbeInterval)
}

func TestParseEnv_InvalidValue(t *testing.T) {
	t.Setenv("SYNC_BATCH_SIZE", "many")

	cfg := &StructuredConfig{}
	assert.Error(t, parseEnv(cfg))
}

func TestParseJSON(t *testing.T) {
	raw := `{
		"remote": {
			"base_url": "https://api.ledgerkeep.example",
			"health_path": "/healthz",
			"request_timeout": "10s"
		},
		"storage": {
			"backend": "file",
			"file": {"path": "state/snapshot.json.sz", "compress": true}
		},
		"sync": {
			"batch_size": 10,
			"max_retries": 5,
			"debounce": "1s",
			"interval": "2m",
			"backoff_base": "500ms",
			"backoff_cap": "30s"
		},
		"network": {"probe_interval": "45s"},
		"log_path": "engine.log"
	}`
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.ledgerkeep.example", cfg.Remote.BaseURL)
	assert.Equal(t, "/healthz", cfg.Remote.HealthPath)
	assert.Equal(t, 10*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "state/snapshot.json.sz", cfg.Storage.File.Path)
	assert.True(t, cfg.Storage.File.Compress)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, time.Second, cfg.Sync.Debounce)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.BackoffBase)
	assert.Equal(t, 30*time.Second, cfg.Sync.BackoffCap)
	assert.Equal(t, 45*time.Second, cfg.Network.ProbeInterval)
	assert.Equal(t, "engine.log", cfg.LogPath)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Duration
		isErr bool
	}{
		{name: "string form", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "number of nanoseconds", input: `1000000000`, want: time.Second},
		{name: "garbage string", input: `"soon"`, isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestConfigBuilder_EarlierSourcesWin(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{
		Remote: Remote{BaseURL: "https://api.ledgerkeep.example"},
		Sync:   Sync{BatchSize: 50},
	})
	b.withDefaults()

	cfg, err := b.build()
	require.NoError(t, err)

	// explicit values survive, defaults fill the rest
	assert.Equal(t, "https://api.ledgerkeep.example", cfg.Remote.BaseURL)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, "/api/health", cfg.Remote.HealthPath)
	assert.Equal(t, 2*time.Second, cfg.Sync.Debounce)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "ledgersync-snapshot.json", cfg.Storage.File.Path)
}

func TestEngineConfigValidate(t *testing.T) {
	valid := func() *EngineConfig {
		return &EngineConfig{
			Remote: EngineRemote{BaseURL: "https://api.ledgerkeep.example", RequestTimeout: 15 * time.Second},
			Storage: EngineStorage{
				Backend:  BackendFile,
				FilePath: "snapshot.json",
			},
			Sync: EngineSync{
				BatchSize:   25,
				MaxRetries:  3,
				BackoffBase: time.Second,
				BackoffCap:  2 * time.Minute,
			},
			Network: EngineNetwork{ProbeInterval: 30 * time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr error
	}{
		{name: "valid file backend", mutate: func(*EngineConfig) {}},
		{
			name: "valid sqlite backend",
			mutate: func(c *EngineConfig) {
				c.Storage.Backend = BackendSQLite
				c.Storage.DSN = "ledgersync.db"
			},
		},
		{
			name:    "missing base url",
			mutate:  func(c *EngineConfig) { c.Remote.BaseURL = "" },
			wantErr: ErrInvalidRemoteConfigs,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *EngineConfig) { c.Remote.RequestTimeout = 0 },
			wantErr: ErrInvalidRemoteConfigs,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *EngineConfig) { c.Storage.Backend = "etcd" },
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name: "sqlite without dsn",
			mutate: func(c *EngineConfig) {
				c.Storage.Backend = BackendSQLite
				c.Storage.DSN = ""
			},
			wantErr: ErrInvalidStorageConfigs,
		},
		{
			name:    "non-positive batch size",
			mutate:  func(c *EngineConfig) { c.Sync.BatchSize = 0 },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "backoff cap below base",
			mutate:  func(c *EngineConfig) { c.Sync.BackoffCap = 100 * time.Millisecond },
			wantErr: ErrInvalidSyncConfigs,
		},
		{
			name:    "zero probe interval",
			mutate:  func(c *EngineConfig) { c.Network.ProbeInterval = 0 },
			wantErr: ErrInvalidNetworkConfigs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
