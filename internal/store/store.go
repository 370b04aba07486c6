package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/savanna/internal/model"
)

var _ GalleryCache = (*Store)(nil)

const (
	sourceSnapshot   = "snapshot"
	sourceSubmission = "submission"

	metaUpdatedAt = "updated_at"
)

// Store is the SQLite-backed gallery cache.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store and initialises the schema.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("init schema version: %w", err)
		}
		version = 0
	} else if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	// Index 0 = migration from v0 to v1, etc.
	migrations := []func() error{
		s.migrateV1, // v0 → v1: gallery entries and cache metadata
		s.migrateV2, // v1 → v2: virtue column for filtered reads
	}

	for i := version; i < len(migrations); i++ {
		if err := migrations[i](); err != nil {
			return fmt.Errorf("migration v%d→v%d: %w", i, i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return fmt.Errorf("update schema version to %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) migrateV1() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS gallery_entries (
		id                TEXT PRIMARY KEY,
		position          INTEGER NOT NULL,
		asset_id          TEXT NOT NULL,
		correlation_token TEXT,
		source            TEXT NOT NULL,
		payload           TEXT NOT NULL,
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_gallery_position ON gallery_entries(position);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_gallery_token
		ON gallery_entries(correlation_token) WHERE correlation_token IS NOT NULL;

	CREATE TABLE IF NOT EXISTS cache_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`)
	return err
}

func (s *Store) migrateV2() error {
	if _, err := s.db.Exec(`ALTER TABLE gallery_entries ADD COLUMN virtue TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`UPDATE gallery_entries SET virtue = COALESCE(json_extract(payload, '$.virtue'), '')`); err != nil {
		return fmt.Errorf("backfill virtue: %w", err)
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_gallery_virtue ON gallery_entries(virtue COLLATE NOCASE, position)`)
	return err
}

// AppendSubmission puts a confirmed submission at the head of the cache and
// refreshes the cache timestamp. A second append for the same correlation
// token is ignored and reports false.
func (s *Store) AppendSubmission(ctx context.Context, sub model.Submission) (bool, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return false, fmt.Errorf("marshal submission: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO gallery_entries (id, position, asset_id, correlation_token, source, payload, virtue, created_at)
		VALUES (?, (SELECT COALESCE(MIN(position), 0) - 1 FROM gallery_entries), ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sub.AssetID, nullString(sub.CorrelationToken), sourceSubmission,
		string(payload), sub.Virtue, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := setUpdatedAt(ctx, tx, now); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// SaveSnapshot replaces the cached gallery with a freshly fetched list.
// Local submissions the snapshot does not include yet stay on top.
func (s *Store) SaveSnapshot(ctx context.Context, subs []model.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gallery_entries WHERE source = ?`, sourceSnapshot); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gallery_entries (id, position, asset_id, source, payload, virtue, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	drop, err := tx.PrepareContext(ctx, `DELETE FROM gallery_entries WHERE source = ? AND asset_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer drop.Close()

	now := s.now()
	createdAt := now.UTC().Format(time.RFC3339)
	for i, sub := range subs {
		payload, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", sub.AssetID, err)
		}
		if _, err := drop.ExecContext(ctx, sourceSubmission, sub.AssetID); err != nil {
			return fmt.Errorf("drop local %s: %w", sub.AssetID, err)
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), i, sub.AssetID, sourceSnapshot, string(payload), sub.Virtue, createdAt); err != nil {
			return fmt.Errorf("insert %s: %w", sub.AssetID, err)
		}
	}

	if err := setUpdatedAt(ctx, tx, now); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadFresh returns the cached gallery when it was written less than maxAge ago.
func (s *Store) LoadFresh(ctx context.Context, maxAge time.Duration) ([]model.Submission, bool, error) {
	updated, ok, err := s.UpdatedAt(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	if s.now().Sub(updated) >= maxAge {
		return nil, false, nil
	}
	subs, err := s.List(ctx)
	if err != nil {
		return nil, false, err
	}
	return subs, true, nil
}

// UpdatedAt returns when the cache was last written.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = ?`, metaUpdatedAt).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cache timestamp: %w", err)
	}
	return time.UnixMilli(ms), true, nil
}

// List returns every cached entry, newest first.
func (s *Store) List(ctx context.Context) ([]model.Submission, error) {
	return s.query(ctx, `SELECT payload FROM gallery_entries ORDER BY position ASC`)
}

// ListByVirtue returns the cached entries of one virtue, newest first.
func (s *Store) ListByVirtue(ctx context.Context, virtue string) ([]model.Submission, error) {
	return s.query(ctx, `SELECT payload FROM gallery_entries WHERE virtue = ? COLLATE NOCASE ORDER BY position ASC`, virtue)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sub model.Submission
		if err := json.Unmarshal([]byte(payload), &sub); err != nil {
			return nil, fmt.Errorf("decode cached entry: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func setUpdatedAt(ctx context.Context, tx *sql.Tx, t time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaUpdatedAt, strconv.FormatInt(t.UnixMilli(), 10),
	)
	if err != nil {
		return fmt.Errorf("touch cache timestamp: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
