package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/intent-router/internal/adapters/state"
	"github.com/mikey/intent-router/internal/config"
	"github.com/mikey/intent-router/internal/ports"
	"go.uber.org/zap"
)

// StateFactory creates state stores based on configuration
type StateFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStateFactory creates a new state factory
func NewStateFactory(cfg *config.Config, logger *zap.Logger) *StateFactory {
	return &StateFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStateStore creates the durable store backing the persisted
// cache namespace. Type "none" disables persistence.
func (f *StateFactory) CreateStateStore() (ports.StateStore, error) {
	stateType := f.cfg.GetString("state.type")

	switch stateType {
	case "sqlite":
		sqlitePath := f.cfg.GetString("state.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return state.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		mysqlDSN := f.cfg.GetString("state.mysql_dsn")
		return state.NewMySQLStore(mysqlDSN, f.logger)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported state store type: %s", stateType)
	}
}
