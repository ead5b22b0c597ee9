package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the StateStore interface.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite state store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ui_state (
			key TEXT PRIMARY KEY,
			value BLOB,
			inserted_at TIMESTAMP,
			expires_at TIMESTAMP,
			access_count INTEGER,
			last_accessed TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ui_state_expires_at ON ui_state(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Save replaces the stored snapshot with entries.
func (s *SQLiteStore) Save(ctx context.Context, entries []ports.PersistedEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ui_state`); err != nil {
		return fmt.Errorf("failed to clear stored state: %w", err)
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ui_state (key, value, inserted_at, expires_at, access_count, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.Key, entry.Value,
			entry.InsertedAt.Format(time.RFC3339),
			entry.ExpiresAt.Format(time.RFC3339),
			entry.AccessCount,
			entry.LastAccessed.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert state entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot.
func (s *SQLiteStore) Load(ctx context.Context) ([]ports.PersistedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, inserted_at, expires_at, access_count, last_accessed
		FROM ui_state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored state: %w", err)
	}
	defer rows.Close()

	var entries []ports.PersistedEntry
	for rows.Next() {
		var entry ports.PersistedEntry
		var insertedAt, expiresAt, lastAccessed string

		if err := rows.Scan(&entry.Key, &entry.Value, &insertedAt, &expiresAt, &entry.AccessCount, &lastAccessed); err != nil {
			s.logger.Error("Failed to scan state row", zap.Error(err))
			continue
		}

		entry.InsertedAt, err = time.Parse(time.RFC3339, insertedAt)
		if err != nil {
			s.logger.Error("Failed to parse inserted_at timestamp", zap.Error(err))
			continue
		}
		entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			s.logger.Error("Failed to parse expires_at timestamp", zap.Error(err))
			continue
		}
		entry.LastAccessed, err = time.Parse(time.RFC3339, lastAccessed)
		if err != nil {
			s.logger.Error("Failed to parse last_accessed timestamp", zap.Error(err))
			continue
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stored state: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
