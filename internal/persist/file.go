// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/golang/snappy"
	"github.com/spf13/afero"

	"github.com/ledgerkeep/ledgersync/internal/logger"
	"github.com/ledgerkeep/ledgersync/models"
)

// fileAdapter persists the snapshot as one JSON document, optionally snappy
// compressed, on an afero filesystem. Writes go through a temp file and a
// rename so a crash mid-save can never leave a truncated snapshot behind.
// Temp names carry a per-save sequence number so concurrent best-effort
// saves never clobber each other's temp file.
type fileAdapter struct {
	fs       afero.Fs
	path     string
	compress bool
	logger   *logger.Logger
	saveSeq  atomic.Uint64
}

// NewFileAdapter builds a file-document snapshot backend rooted at path on
// the given filesystem. Tests pass afero.NewMemMapFs().
func NewFileAdapter(fs afero.Fs, path string, compress bool, log *logger.Logger) Adapter {
	return &fileAdapter{fs: fs, path: path, compress: compress, logger: log}
}

func (f *fileAdapter) Save(ctx context.Context, snapshot models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if f.compress {
		payload = snappy.Encode(nil, payload)
	}

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err = f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	tmp := fmt.Sprintf("%s.%d.tmp", f.path, f.saveSeq.Add(1))
	if err = afero.WriteFile(f.fs, tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err = f.fs.Rename(tmp, f.path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	f.logger.Debug().
		Str("func", "fileAdapter.Save").
		Str("path", f.path).
		Int("bytes", len(payload)).
		Msg("snapshot saved")

	return nil
}

func (f *fileAdapter) Load(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}

	data, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewSnapshot(), nil
		}
		return models.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	if f.compress {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return models.Snapshot{}, fmt.Errorf("decompress snapshot: %w", err)
		}
	}

	snapshot := models.NewSnapshot()
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot file: %w", err)
	}
	if snapshot.Records == nil {
		snapshot.Records = make(map[string]models.Record)
	}
	if snapshot.Conflicts == nil {
		snapshot.Conflicts = make(map[string]models.Conflict)
	}

	return snapshot, nil
}
