package statstore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/zen-systems/quorum/pkg/registry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS backend_stats (
	backend      TEXT    NOT NULL,
	query_type   TEXT    NOT NULL,
	success_rate REAL    NOT NULL,
	avg_quality  REAL    NOT NULL,
	avg_latency  REAL    NOT NULL,
	sample_count INTEGER NOT NULL,
	PRIMARY KEY (backend, query_type)
);
`

// SQLiteStore persists snapshots in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite stats store requires a path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads all persisted statistics.
func (s *SQLiteStore) Load() (registry.Snapshot, error) {
	rows, err := s.db.Query(
		"SELECT backend, query_type, success_rate, avg_quality, avg_latency, sample_count FROM backend_stats")
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	snap := registry.Snapshot{}
	for rows.Next() {
		var backend, queryType string
		var stats registry.LiveStats
		if err := rows.Scan(&backend, &queryType, &stats.SuccessRate, &stats.AvgQuality, &stats.AvgLatency, &stats.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		if snap[backend] == nil {
			snap[backend] = make(map[string]registry.LiveStats)
		}
		snap[backend][queryType] = stats
	}
	return snap, rows.Err()
}

// Save replaces all persisted statistics in one transaction.
func (s *SQLiteStore) Save(snap registry.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM backend_stats"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		"INSERT INTO backend_stats (backend, query_type, success_rate, avg_quality, avg_latency, sample_count) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for backend, byType := range snap {
		for queryType, stats := range byType {
			if _, err := stmt.Exec(backend, queryType, stats.SuccessRate, stats.AvgQuality, stats.AvgLatency, stats.SampleCount); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
