package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/email-priority/internal/adapters/history"
	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"go.uber.org/zap"
)

// HistoryFactory creates triage history stores based on configuration
type HistoryFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewHistoryFactory creates a new history factory
func NewHistoryFactory(cfg *config.Config, logger *zap.Logger) *HistoryFactory {
	return &HistoryFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateHistoryRepository creates the configured history store, or nil
// when history is disabled
func (f *HistoryFactory) CreateHistoryRepository() (core.HistoryRepository, error) {
	historyCfg, err := f.cfg.GetHistory()
	if err != nil {
		return nil, err
	}
	if !historyCfg.Enabled {
		return nil, nil
	}

	switch historyCfg.Type {
	case "memory":
		return history.NewMemoryHistory(f.logger, historyCfg.CleanupFrequency), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(historyCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return history.NewSQLiteHistory(historyCfg.SQLitePath, f.logger, historyCfg.CleanupFrequency)
	case "mysql":
		return history.NewMySQLHistory(historyCfg.MySQLDSN, f.logger, historyCfg.CleanupFrequency)
	case "redis":
		return history.NewRedisHistory(historyCfg.RedisURL, prefixKey(historyCfg.RedisPrefix), f.logger, historyCfg.CleanupFrequency)
	default:
		return nil, fmt.Errorf("unsupported history type: %s", historyCfg.Type)
	}
}

// GetHistoryOptions returns whether and for how long decisions are recorded
func (f *HistoryFactory) GetHistoryOptions() (core.HistoryOptions, error) {
	historyCfg, err := f.cfg.GetHistory()
	if err != nil {
		return core.HistoryOptions{}, err
	}
	return core.HistoryOptions{
		Enabled:   historyCfg.Enabled,
		Retention: historyCfg.Retention,
	}, nil
}

func prefixKey(prefix string) string {
	if prefix == "" || prefix[len(prefix)-1] == ':' {
		return prefix
	}
	return prefix + ":"
}
