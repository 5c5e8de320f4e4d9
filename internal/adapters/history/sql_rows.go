package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mikey/email-priority/internal/core"
)

const selectHistory = `
	SELECT id, sender, subject, score, band, sentiment, emotion, urgency, vip, recorded_at, expires_at
	FROM priority_history
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads a history row; times are stored as unix nanoseconds
func scanEntry(row rowScanner) (*core.HistoryEntry, error) {
	var entry core.HistoryEntry
	var band string
	var recordedAt, expiresAt int64

	err := row.Scan(&entry.ID, &entry.Sender, &entry.Subject, &entry.Score, &band,
		&entry.Sentiment, &entry.Emotion, &entry.Urgency, &entry.VIP, &recordedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	entry.Band = core.PriorityBand(band)
	entry.RecordedAt = time.Unix(0, recordedAt)
	entry.ExpiresAt = time.Unix(0, expiresAt)
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*core.HistoryEntry, error) {
	defer rows.Close()

	var out []*core.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return out, nil
}
