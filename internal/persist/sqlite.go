package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/migrations"
	"github.com/ledgerkeep/ledgersync/models"
)

const lastSyncedAtKey = "last_synced_at"

// sqliteAdapter persists the snapshot into a local SQLite database. Each
// save replaces the stored snapshot inside one transaction, so a reader can
// never observe a half-written state.
type sqliteAdapter struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteAdapter opens (creating if needed) the SQLite database at dsn,
// applies pending schema migrations, and returns the snapshot backend.
func NewSQLiteAdapter(ctx context.Context, dsn string, log *logger.Logger) (Adapter, error) {
	if err := createLocalDBFileIfNotExists(dsn); err != nil {
		log.Err(err).Str("func", "NewSQLiteAdapter").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Err(err).Str("func", "NewSQLiteAdapter").Msg("error connecting database")
		return nil, fmt.Errorf("error opening connection to DB: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewSQLiteAdapter").Msg("error connecting database (ping)")
		return nil, err
	}

	if err = migrations.Migrate(conn); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Debug().Str("func", "NewSQLiteAdapter").Msg("connected to snapshot database successfully")

	return &sqliteAdapter{db: conn, logger: log}, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if dbFile == ":memory:" || strings.Contains(dbFile, "mode=memory") {
		return nil
	}

	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}

func (s *sqliteAdapter) Save(ctx context.Context, snapshot models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"records", "pending_operations", "conflicts", "sync_meta"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}

	if err = s.insertRecords(ctx, tx, snapshot.Records); err != nil {
		return err
	}
	if err = s.insertOperations(ctx, tx, snapshot.PendingOperations); err != nil {
		return err
	}
	if err = s.insertConflicts(ctx, tx, snapshot.Conflicts); err != nil {
		return err
	}
	if snapshot.LastSyncedAt != nil {
		query, args, qerr := sq.Insert("sync_meta").
			Columns("key", "value").
			Values(lastSyncedAtKey, snapshot.LastSyncedAt.Format(time.RFC3339Nano)).
			ToSql()
		if qerr != nil {
			return fmt.Errorf("error building sync_meta query: %w", qerr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to save sync metadata: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	s.logger.Debug().
		Str("func", "sqliteAdapter.Save").
		Int("records", len(snapshot.Records)).
		Int("pending", len(snapshot.PendingOperations)).
		Int("conflicts", len(snapshot.Conflicts)).
		Msg("snapshot saved")

	return nil
}

func (s *sqliteAdapter) insertRecords(ctx context.Context, tx *sql.Tx, records map[string]models.Record) error {
	if len(records) == 0 {
		return nil
	}

	builder := sq.Insert("records").
		Columns("id", "version", "payload", "sync_state", "updated_at")
	for _, rec := range records {
		var updatedAt any
		if rec.UpdatedAt != nil {
			updatedAt = rec.UpdatedAt.Format(time.RFC3339Nano)
		}
		builder = builder.Values(rec.ID, rec.Version, nullableBlob(rec.Payload), string(rec.SyncState), updatedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("error building records query: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	return nil
}

func (s *sqliteAdapter) insertOperations(ctx context.Context, tx *sql.Tx, ops []models.PendingOperation) error {
	if len(ops) == 0 {
		return nil
	}

	builder := sq.Insert("pending_operations").
		Columns("operation_id", "kind", "entity_id", "payload",
			"client_version", "created_at", "retry_count", "max_retries", "terminal_error")
	for _, op := range ops {
		builder = builder.Values(
			op.OperationID,
			string(op.Kind),
			op.EntityID,
			nullableBlob(op.Payload),
			op.ClientVersion,
			op.CreatedAt.Format(time.RFC3339Nano),
			op.RetryCount,
			op.MaxRetries,
			op.TerminalError,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("error building pending operations query: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save pending operations: %w", err)
	}
	return nil
}

func (s *sqliteAdapter) insertConflicts(ctx context.Context, tx *sql.Tx, conflicts map[string]models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	builder := sq.Insert("conflicts").
		Columns("entity_id", "client_version", "server_version",
			"client_payload", "server_payload", "conflicting_fields", "detected_at")
	for _, c := range conflicts {
		var fields any
		if c.ConflictingFields != nil {
			encoded, err := json.Marshal(c.ConflictingFields)
			if err != nil {
				return fmt.Errorf("encode conflicting fields for %s: %w", c.EntityID, err)
			}
			fields = string(encoded)
		}
		builder = builder.Values(
			c.EntityID,
			c.ClientVersion,
			c.ServerVersion,
			nullableBlob(c.ClientPayload),
			nullableBlob(c.ServerPayload),
			fields,
			c.DetectedAt.Format(time.RFC3339Nano),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("error building conflicts query: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	return nil
}

func (s *sqliteAdapter) Load(ctx context.Context) (models.Snapshot, error) {
	snapshot := models.NewSnapshot()

	if err := s.loadRecords(ctx, &snapshot); err != nil {
		return models.Snapshot{}, err
	}
	if err := s.loadOperations(ctx, &snapshot); err != nil {
		return models.Snapshot{}, err
	}
	if err := s.loadConflicts(ctx, &snapshot); err != nil {
		return models.Snapshot{}, err
	}

	query, args, err := sq.Select("value").
		From("sync_meta").
		Where(sq.Eq{"key": lastSyncedAtKey}).
		ToSql()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("error building sync_meta query: %w", err)
	}
	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		// no completed sync yet
	case err != nil:
		return models.Snapshot{}, fmt.Errorf("failed to load sync metadata: %w", err)
	default:
		ts, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			return models.Snapshot{}, fmt.Errorf("parse last synced timestamp: %w", perr)
		}
		snapshot.LastSyncedAt = &ts
	}

	return snapshot, nil
}

func (s *sqliteAdapter) loadRecords(ctx context.Context, snapshot *models.Snapshot) error {
	query, args, err := sq.Select("id", "version", "payload", "sync_state", "updated_at").
		From("records").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building records query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       models.Record
			state     string
			payload   []byte
			updatedAt sql.NullString
		)
		if err = rows.Scan(&rec.ID, &rec.Version, &payload, &state, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan record row: %w", err)
		}
		rec.SyncState = models.SyncState(state)
		if payload != nil {
			rec.Payload = json.RawMessage(payload)
		}
		if updatedAt.Valid {
			ts, perr := time.Parse(time.RFC3339Nano, updatedAt.String)
			if perr != nil {
				return fmt.Errorf("parse record updated_at: %w", perr)
			}
			rec.UpdatedAt = &ts
		}
		snapshot.Records[rec.ID] = rec
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating record rows: %w", err)
	}
	return nil
}

func (s *sqliteAdapter) loadOperations(ctx context.Context, snapshot *models.Snapshot) error {
	query, args, err := sq.Select("operation_id", "kind", "entity_id", "payload",
		"client_version", "created_at", "retry_count", "max_retries", "terminal_error").
		From("pending_operations").
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building pending operations query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query pending operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			op        models.PendingOperation
			kind      string
			payload   []byte
			createdAt string
		)
		if err = rows.Scan(&op.OperationID, &kind, &op.EntityID, &payload,
			&op.ClientVersion, &createdAt, &op.RetryCount, &op.MaxRetries, &op.TerminalError); err != nil {
			return fmt.Errorf("failed to scan pending operation row: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		if payload != nil {
			op.Payload = json.RawMessage(payload)
		}
		op.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return fmt.Errorf("parse operation created_at: %w", err)
		}
		snapshot.PendingOperations = append(snapshot.PendingOperations, op)
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating pending operation rows: %w", err)
	}
	return nil
}

func (s *sqliteAdapter) loadConflicts(ctx context.Context, snapshot *models.Snapshot) error {
	query, args, err := sq.Select("entity_id", "client_version", "server_version",
		"client_payload", "server_payload", "conflicting_fields", "detected_at").
		From("conflicts").
		ToSql()
	if err != nil {
		return fmt.Errorf("error building conflicts query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c             models.Conflict
			clientPayload []byte
			serverPayload []byte
			fields        sql.NullString
			detectedAt    string
		)
		if err = rows.Scan(&c.EntityID, &c.ClientVersion, &c.ServerVersion,
			&clientPayload, &serverPayload, &fields, &detectedAt); err != nil {
			return fmt.Errorf("failed to scan conflict row: %w", err)
		}
		if clientPayload != nil {
			c.ClientPayload = json.RawMessage(clientPayload)
		}
		if serverPayload != nil {
			c.ServerPayload = json.RawMessage(serverPayload)
		}
		if fields.Valid {
			if err = json.Unmarshal([]byte(fields.String), &c.ConflictingFields); err != nil {
				return fmt.Errorf("decode conflicting fields for %s: %w", c.EntityID, err)
			}
		}
		c.DetectedAt, err = time.Parse(time.RFC3339Nano, detectedAt)
		if err != nil {
			return fmt.Errorf("parse conflict detected_at: %w", err)
		}
		snapshot.Conflicts[c.EntityID] = c
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating conflict rows: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *sqliteAdapter) Close() error {
	return s.db.Close()
}

func nullableBlob(b []byte) any {
	if b == nil {
		return nil
	}
	return []byte(b)
}
