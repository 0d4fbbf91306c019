// Package persist implements the durable snapshot layer of the engine.
//
// Two interchangeable backends are provided: a single compressed JSON
// document on the filesystem, and an SQLite database. Both round-trip the
// full engine snapshot exactly. Persistence is best-effort by design: a
// failed save is logged by the caller and retried on the next
// state-changing event, never blocking in-memory operation.
package persist

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/ledgerkeep/ledgersync/internal/config"
	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/models"
)

//go:generate mockgen -source=persist.go -destination=../mock/persist_mock.go -package=mock

// Adapter is the durable serialization boundary of the engine. Load is
// called once at startup, before any mutation is accepted; Save after every
// state-changing engine event and on shutdown.
type Adapter interface {
	// Save durably writes the full snapshot, replacing the previous one.
	Save(ctx context.Context, snapshot models.Snapshot) error

	// Load restores the last saved snapshot. A backend with no prior state
	// returns an empty snapshot, not an error.
	Load(ctx context.Context) (models.Snapshot, error)
}

// New constructs the snapshot backend selected by cfg.Backend.
func New(cfg config.EngineStorage, log *logger.Logger) (Adapter, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileAdapter(afero.NewOsFs(), cfg.FilePath, cfg.Compress, log), nil
	case config.BackendSQLite:
		return NewSQLiteAdapter(context.Background(), cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q: %w", cfg.Backend, config.ErrInvalidStorageConfigs)
	}
}
