package store

import (
	"context"
	"database/sql"
	"fmt"
)

// The ledger is a single-row aggregate of catalog byte usage, kept so quota
// checks are O(1) instead of summing the catalog per request. It is only
// written inside the same transaction as the matching catalog change.

// UsageBytes reads the current ledger value.
func (s *Store) UsageBytes(ctx context.Context) (int64, error) {
	var used int64
	err := s.db.QueryRowContext(ctx, "SELECT used_bytes FROM storage_usage WHERE id = 1").Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("read usage ledger: %w", err)
	}
	return used, nil
}

// SetUsageBytes overwrites the ledger value. Arithmetic correctness is the
// caller's responsibility; only non-negativity is enforced here.
func (s *Store) SetUsageBytes(ctx context.Context, used int64) error {
	if used < 0 {
		return fmt.Errorf("used_bytes must be >= 0")
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE storage_usage SET used_bytes = ?, last_update = datetime('now') WHERE id = 1", used)
	if err != nil {
		return fmt.Errorf("write usage ledger: %w", err)
	}
	return nil
}

func usageBytesTx(ctx context.Context, tx *sql.Tx) (int64, error) {
	var used int64
	err := tx.QueryRowContext(ctx, "SELECT used_bytes FROM storage_usage WHERE id = 1").Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("read usage ledger: %w", err)
	}
	return used, nil
}

func setUsageBytesTx(ctx context.Context, tx *sql.Tx, used int64) error {
	if used < 0 {
		return fmt.Errorf("used_bytes must be >= 0")
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE storage_usage SET used_bytes = ?, last_update = datetime('now') WHERE id = 1", used)
	if err != nil {
		return fmt.Errorf("write usage ledger: %w", err)
	}
	return nil
}
