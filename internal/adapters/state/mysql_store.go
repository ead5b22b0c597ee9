package state

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the StateStore interface.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL state store.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ui_state (
			` + "`key`" + ` VARCHAR(512) PRIMARY KEY,
			value BLOB,
			inserted_at DATETIME,
			expires_at DATETIME,
			access_count BIGINT,
			last_accessed DATETIME,
			INDEX idx_ui_state_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{
		db:     db,
		logger: logger,
	}, nil
}

// Save replaces the stored snapshot with entries.
func (s *MySQLStore) Save(ctx context.Context, entries []ports.PersistedEntry) error {
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
			INSERT INTO ui_state (`+"`key`"+`, value, inserted_at, expires_at, access_count, last_accessed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, entry.Key, entry.Value, entry.InsertedAt, entry.ExpiresAt, entry.AccessCount, entry.LastAccessed)
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
func (s *MySQLStore) Load(ctx context.Context) ([]ports.PersistedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+"`key`"+`, value, inserted_at, expires_at, access_count, last_accessed
		FROM ui_state
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored state: %w", err)
	}
	defer rows.Close()

	var entries []ports.PersistedEntry
	for rows.Next() {
		var entry ports.PersistedEntry
		var value sql.RawBytes

		if err := rows.Scan(&entry.Key, &value, &entry.InsertedAt, &entry.ExpiresAt, &entry.AccessCount, &entry.LastAccessed); err != nil {
			s.logger.Error("Failed to scan state row", zap.Error(err))
			continue
		}
		entry.Value = append([]byte(nil), value...)

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stored state: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
