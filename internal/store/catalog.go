package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fstash/internal/models"
)

const fileColumns = "id, name, kind, size_bytes, storage_key, created_at"

// ErrQuotaExceeded is returned by CreateFileWithQuota when the ledger
// re-check inside the transaction finds no room left.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// CreateFileWithQuota inserts one catalog row and advances the usage ledger
// in a single transaction. The ledger is re-read and the quota re-verified
// inside the transaction, so two concurrent ingests cannot both pass a stale
// check and jointly overshoot maxTotalBytes. Returns the ledger value after
// the insert.
func (s *Store) CreateFileWithQuota(ctx context.Context, record *models.FileRecord, maxTotalBytes int64) (_ int64, err error) {
	if record == nil {
		return 0, fmt.Errorf("file record is required")
	}
	if strings.TrimSpace(record.Name) == "" {
		return 0, fmt.Errorf("file name is required")
	}
	if strings.TrimSpace(record.StorageKey) == "" {
		return 0, fmt.Errorf("storage key is required")
	}
	if record.SizeBytes < 0 {
		return 0, fmt.Errorf("size_bytes must be >= 0")
	}
	if _, kindErr := models.ParseFileKind(string(record.Kind)); kindErr != nil {
		return 0, kindErr
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	used, err := usageBytesTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	if maxTotalBytes > 0 && used+record.SizeBytes > maxTotalBytes {
		return 0, ErrQuotaExceeded
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO files (name, kind, size_bytes, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.Name, string(record.Kind), record.SizeBytes, record.StorageKey, formatTime(record.CreatedAt))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	record.ID = id

	usedAfter := used + record.SizeBytes
	if err := setUsageBytesTx(ctx, tx, usedAfter); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return usedAfter, nil
}

// DeleteFileWithUsage removes one catalog row and decrements the ledger by
// the record's size in a single transaction, clamped at zero. The second
// return reports whether the row existed.
func (s *Store) DeleteFileWithUsage(ctx context.Context, id int64) (_ *models.FileRecord, _ int64, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := scanFile(tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if err != nil {
		return nil, 0, false, err
	}
	if record == nil {
		_ = tx.Rollback()
		return nil, 0, false, nil
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		return nil, 0, false, err
	}

	used, err := usageBytesTx(ctx, tx)
	if err != nil {
		return nil, 0, false, err
	}
	usedAfter := used - record.SizeBytes
	if usedAfter < 0 {
		// Accounting drift never propagates as negative usage.
		usedAfter = 0
	}
	if err = setUsageBytesTx(ctx, tx, usedAfter); err != nil {
		return nil, 0, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, 0, false, err
	}
	return record, usedAfter, true, nil
}

// GetFile returns one file record by id, or nil if absent.
func (s *Store) GetFile(ctx context.Context, id int64) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	return scanFile(row)
}

// GetFileByStorageKey returns one file record by its blob key, or nil.
func (s *Store) GetFileByStorageKey(ctx context.Context, key string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE storage_key = ?`, key)
	return scanFile(row)
}

// QueryFiles lists file records, newest first with id as the tie-breaker.
// An empty kind lists everything.
func (s *Store) QueryFiles(ctx context.Context, kind models.FileKind) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.FileRecord{}
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, rows.Err()
}

// ListStorageKeys returns every storage key referenced by the catalog.
func (s *Store) ListStorageKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT storage_key FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SumFileSizes returns the catalog-side total, for ledger drift checks.
func (s *Store) SumFileSizes(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(size_bytes), 0) FROM files").Scan(&sum)
	return sum, err
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	record := models.FileRecord{}
	var kind, createdAt string

	err := scanner.Scan(&record.ID, &record.Name, &kind, &record.SizeBytes, &record.StorageKey, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	record.Kind = models.FileKind(kind)
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = parsed

	return &record, nil
}

// sortableTimeLayout keeps a fixed-width fraction so string comparison in
// ORDER BY matches time order.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sortableTimeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	return t, nil
}
