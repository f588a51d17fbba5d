package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/sheetkit/internal/platform/errors"
	"github.com/louisbranch/sheetkit/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
	"github.com/louisbranch/sheetkit/internal/sheet/store/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store owns the SQLite database holding every sheet instance.
type Store struct {
	sqlDB    *sql.DB
	maxBatch int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBatch overrides the per-write field limit of sheet stores.
func WithMaxBatch(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the sheet database at path and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{sqlDB: sqlDB, maxBatch: store.DefaultMaxBatch, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close closes the underlying database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SheetRecord describes one stored sheet instance.
type SheetRecord struct {
	InstanceID int64
	Kind       string
	CreatedAt  time.Time
}

// EnsureSheet registers an instance with kind if it is not stored yet and
// returns the stored record.
func (s *Store) EnsureSheet(ctx context.Context, id int64, kind string) (SheetRecord, error) {
	if strings.TrimSpace(kind) == "" {
		return SheetRecord{}, fmt.Errorf("sheet kind is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"INSERT OR IGNORE INTO sheets (instance_id, kind, created_at) VALUES (?, ?, ?)",
		id, kind, toMillis(s.now()),
	); err != nil {
		return SheetRecord{}, fmt.Errorf("insert sheet %d: %w", id, err)
	}
	return s.GetSheet(ctx, id)
}

// GetSheet loads the record of one instance.
func (s *Store) GetSheet(ctx context.Context, id int64) (SheetRecord, error) {
	var rec SheetRecord
	var created int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT instance_id, kind, created_at FROM sheets WHERE instance_id = ?", id,
	).Scan(&rec.InstanceID, &rec.Kind, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return SheetRecord{}, apperrors.WithMetadata(apperrors.CodeNotFound, "sheet not found",
			map[string]string{"instance_id": strconv.FormatInt(id, 10)})
	}
	if err != nil {
		return SheetRecord{}, fmt.Errorf("get sheet %d: %w", id, err)
	}
	rec.CreatedAt = fromMillis(created)
	return rec, nil
}

// ListSheets returns every instance ordered by id.
func (s *Store) ListSheets(ctx context.Context) ([]SheetRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT instance_id, kind, created_at FROM sheets ORDER BY instance_id")
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	defer rows.Close()

	var out []SheetRecord
	for rows.Next() {
		var rec SheetRecord
		var created int64
		if err := rows.Scan(&rec.InstanceID, &rec.Kind, &created); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sheets: %w", err)
	}
	return out, nil
}

// Sheet returns the field store of one instance. The instance must have been
// registered with EnsureSheet before writing.
func (s *Store) Sheet(id int64) *SheetStore {
	return &SheetStore{parent: s, id: id}
}

// SheetStore implements store.Store over the rows of one instance.
type SheetStore struct {
	parent *Store
	id     int64
}

var _ store.Store = (*SheetStore)(nil)

// MaxBatch implements store.Store.
func (ss *SheetStore) MaxBatch() int {
	return ss.parent.maxBatch
}

// Read loads every field of the instance.
func (ss *SheetStore) Read(ctx context.Context) (document.Data, error) {
	rows, err := ss.parent.sqlDB.QueryContext(ctx,
		"SELECT field, value_type, value_json FROM sheet_fields WHERE instance_id = ? ORDER BY position",
		ss.id,
	)
	if err != nil {
		return nil, fmt.Errorf("read sheet %d: %w", ss.id, err)
	}
	defer rows.Close()

	data := document.Data{}
	for rows.Next() {
		var field, valueType, raw string
		if err := rows.Scan(&field, &valueType, &raw); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		value, err := decodeValue(valueType, raw)
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", field, err)
		}
		data[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read fields: %w", err)
	}
	return data, nil
}

// Get loads one field.
func (ss *SheetStore) Get(ctx context.Context, key string) (any, bool, error) {
	var valueType, raw string
	err := ss.parent.sqlDB.QueryRowContext(ctx,
		"SELECT value_type, value_json FROM sheet_fields WHERE instance_id = ? AND field = ?",
		ss.id, key,
	).Scan(&valueType, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get field %s: %w", key, err)
	}
	value, err := decodeValue(valueType, raw)
	if err != nil {
		return nil, false, fmt.Errorf("decode field %s: %w", key, err)
	}
	return value, true, nil
}

// WriteBatch applies fields in one transaction. New fields are appended after
// the existing ones; updated fields keep their position.
func (ss *SheetStore) WriteBatch(ctx context.Context, fields []store.Field) error {
	if len(fields) > ss.parent.maxBatch {
		return apperrors.WrapWithMetadata(apperrors.CodeBatchTooLarge, "write rejected",
			map[string]string{"size": strconv.Itoa(len(fields)), "max": strconv.Itoa(ss.parent.maxBatch)},
			store.ErrBatchTooLarge)
	}
	if len(fields) == 0 {
		return nil
	}

	tx, err := ss.parent.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	now := toMillis(ss.parent.now())
	for _, f := range fields {
		if f.Value == nil {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM sheet_fields WHERE instance_id = ? AND field = ?", ss.id, f.Key,
			); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("delete field %s: %w", f.Key, err)
			}
			continue
		}
		valueType, raw, err := encodeValue(f.Value)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode field %s: %w", f.Key, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO sheet_fields (instance_id, field, position, value_type, value_json, updated_at)
VALUES (?, ?, COALESCE((SELECT MAX(position) FROM sheet_fields WHERE instance_id = ?), 0) + 1, ?, ?, ?)
ON CONFLICT(instance_id, field) DO UPDATE SET
    value_type = excluded.value_type,
    value_json = excluded.value_json,
    updated_at = excluded.updated_at`,
			ss.id, f.Key, ss.id, valueType, raw, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert field %s: %w", f.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
