package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/email-priority/internal/core"
	"go.uber.org/zap"
)

// MySQLHistory is a MySQL implementation of the HistoryRepository interface
type MySQLHistory struct {
	db       *sql.DB
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMySQLHistory creates a new MySQL history store
func NewMySQLHistory(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLHistory, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS priority_history (
			id VARCHAR(64) PRIMARY KEY,
			sender VARCHAR(255),
			subject TEXT,
			score INT,
			band VARCHAR(16),
			sentiment DOUBLE,
			emotion DOUBLE,
			urgency DOUBLE,
			vip BOOLEAN,
			recorded_at BIGINT,
			expires_at BIGINT,
			INDEX idx_recorded_at (recorded_at),
			INDEX idx_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	h := &MySQLHistory{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go runCleanup(h, cleanupFreq, h.stopCh, logger)

	return h, nil
}

// Record stores an entry
func (h *MySQLHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO priority_history
			(id, sender, subject, score, band, sentiment, emotion, urgency, vip, recorded_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			score = VALUES(score),
			band = VALUES(band),
			sentiment = VALUES(sentiment),
			emotion = VALUES(emotion),
			urgency = VALUES(urgency),
			vip = VALUES(vip),
			recorded_at = VALUES(recorded_at),
			expires_at = VALUES(expires_at)
	`, entry.ID, entry.Sender, entry.Subject, entry.Score, string(entry.Band),
		entry.Sentiment, entry.Emotion, entry.Urgency, entry.VIP,
		entry.RecordedAt.UnixNano(), entry.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// Get retrieves an unexpired entry by ID
func (h *MySQLHistory) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
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
func (h *MySQLHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	query := selectHistory + `
		WHERE expires_at > ?
		ORDER BY recorded_at DESC
	`
	args := []any{time.Now().UnixNano()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanEntries(rows)
}

// Delete removes an entry
func (h *MySQLHistory) Delete(ctx context.Context, id string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM priority_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (h *MySQLHistory) Cleanup(ctx context.Context) error {
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
func (h *MySQLHistory) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if err := h.db.Close(); err != nil {
			h.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
