package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Store wraps the SQLite database holding the file catalog and the usage
// ledger.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database and bootstraps the schema.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Info summarizes catalog state for diagnostics.
type Info struct {
	SchemaVersion int            `json:"schema_version"`
	FileCounts    map[string]int `json:"file_counts"`
	TotalFiles    int            `json:"total_files"`
	UsedBytes     int64          `json:"used_bytes"`
}

// StoreInfo reports schema version, per-kind file counts, and ledger usage.
func (s *Store) StoreInfo(ctx context.Context) (Info, error) {
	info := Info{FileCounts: map[string]int{}}

	version, err := currentVersion(s.db)
	if err != nil {
		return info, err
	}
	info.SchemaVersion = version

	rows, err := s.db.QueryContext(ctx, "SELECT kind, COUNT(*) FROM files GROUP BY kind")
	if err != nil {
		return info, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return info, err
		}
		info.FileCounts[kind] = count
		info.TotalFiles += count
	}
	if err := rows.Err(); err != nil {
		return info, err
	}

	used, err := s.UsageBytes(ctx)
	if err != nil {
		return info, err
	}
	info.UsedBytes = used

	return info, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// A single connection serializes every transaction, which is what the
	// quota re-check inside CreateFileWithQuota relies on.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}
