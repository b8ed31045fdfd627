package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"prospector/internal/datamodel"
	"prospector/internal/logging"
)

// LocalCache is an on-disk cache of preprocessed commit features, keyed
// by (repository, commit id). It is consulted before the remote store
// and works in every store mode; the mode setting governs remote
// interaction only.
type LocalCache struct {
	conn   *sql.DB
	logger *logging.Logger
}

const localSchema = `
CREATE TABLE IF NOT EXISTS commit_features (
	repository TEXT NOT NULL,
	commit_id  TEXT NOT NULL,
	record     TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (repository, commit_id)
);
`

// OpenLocalCache opens or creates the cache database at path.
func OpenLocalCache(path string, logger *logging.Logger) (*LocalCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(localSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logger.Debug("Local feature cache ready", map[string]interface{}{
		"path": path,
	})

	return &LocalCache{conn: conn, logger: logger}, nil
}

// Close closes the cache database.
func (c *LocalCache) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Get returns the cached records found for the given ids. Missing ids
// are simply absent from the result; a corrupt row is skipped and
// logged.
func (c *LocalCache) Get(ctx context.Context, repository string, ids []string) ([]datamodel.Commit, error) {
	stmt, err := c.conn.PrepareContext(ctx,
		"SELECT record FROM commit_features WHERE repository = ? AND commit_id = ?")
	if err != nil {
		return nil, err
	}
	defer func() { _ = stmt.Close() }()

	var out []datamodel.Commit
	for _, id := range ids {
		var raw string
		err := stmt.QueryRowContext(ctx, repository, id).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec datamodel.Commit
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			c.logger.Warn("Dropping corrupt cache record", map[string]interface{}{
				"commitId": id,
				"error":    err.Error(),
			})
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Put upserts records. Writes are additive and idempotent by id;
// concurrent runs racing on the same repository resolve last-write-wins.
func (c *LocalCache) Put(ctx context.Context, repository string, records []*datamodel.Commit) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO commit_features (repository, commit_id, record, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (repository, commit_id) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal record %s: %w", rec.CommitID, err)
		}
		if _, err := stmt.ExecContext(ctx, repository, rec.CommitID, string(raw), now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
