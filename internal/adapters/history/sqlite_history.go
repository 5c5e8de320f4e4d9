package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/email-priority/internal/core"
	"go.uber.org/zap"
)

// SQLiteHistory is a SQLite implementation of the HistoryRepository interface
type SQLiteHistory struct {
	db       *sql.DB
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSQLiteHistory creates a new SQLite history store
func NewSQLiteHistory(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS priority_history (
			id TEXT PRIMARY KEY,
			sender TEXT,
			subject TEXT,
			score INTEGER,
			band TEXT,
			sentiment REAL,
			emotion REAL,
			urgency REAL,
			vip BOOLEAN,
			recorded_at INTEGER,
			expires_at INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_priority_history_expires_at ON priority_history(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	h := &SQLiteHistory{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go runCleanup(h, cleanupFreq, h.stopCh, logger)

	return h, nil
}

// Record stores an entry
func (h *SQLiteHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO priority_history
			(id, sender, subject, score, band, sentiment, emotion, urgency, vip, recorded_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Sender, entry.Subject, entry.Score, string(entry.Band),
		entry.Sentiment, entry.Emotion, entry.Urgency, entry.VIP,
		entry.RecordedAt.UnixNano(), entry.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// Get retrieves an unexpired entry by ID
func (h *SQLiteHistory) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	row := h.db.QueryRowContext(ctx, selectHistory+`
		WHERE id = ? AND expires_at > ?
	`, id, time.Now().UnixNano())

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, selectHistory+`
		WHERE expires_at > ?
		ORDER BY recorded_at DESC
		LIMIT ?
	`, time.Now().UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanEntries(rows)
}

// Delete removes an entry
func (h *SQLiteHistory) Delete(ctx context.Context, id string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM priority_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (h *SQLiteHistory) Cleanup(ctx context.Context) error {
	result, err := h.db.ExecContext(ctx, `
		DELETE FROM priority_history
		WHERE expires_at <= ?
	`, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		h.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		h.logger.Debug("Cleaned up expired history entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (h *SQLiteHistory) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if err := h.db.Close(); err != nil {
			h.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}
