package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mikey/email-priority/internal/core"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a history entry is not found
	ErrNotFound = errors.New("history entry not found")
)

// MemoryHistory is an in-memory implementation of the HistoryRepository interface
type MemoryHistory struct {
	entries     map[string]*core.HistoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryHistory creates a new in-memory history store
func NewMemoryHistory(logger *zap.Logger, cleanupFreq time.Duration) *MemoryHistory {
	h := &MemoryHistory{
		entries:     make(map[string]*core.HistoryEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go runCleanup(h, cleanupFreq, h.stopCh, logger)

	return h
}

// Record stores an entry
func (h *MemoryHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := *entry
	h.entries[entry.ID] = &stored
	return nil
}

// Get retrieves an unexpired entry by ID
func (h *MemoryHistory) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entry, ok := h.entries[id]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}

	out := *entry
	return &out, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *MemoryHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	out := make([]*core.HistoryEntry, 0, len(h.entries))
	for _, entry := range h.entries {
		if now.After(entry.ExpiresAt) {
			continue
		}
		e := *entry
		out = append(out, &e)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes an entry
func (h *MemoryHistory) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.entries, id)
	return nil
}

// Cleanup removes expired entries
func (h *MemoryHistory) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	expiredCount := 0

	for id, entry := range h.entries {
		if now.After(entry.ExpiresAt) {
			delete(h.entries, id)
			expiredCount++
		}
	}

	h.logger.Debug("Cleaned up expired history entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Stop stops the background cleanup task
func (h *MemoryHistory) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// runCleanup periodically removes expired entries until stopCh closes
func runCleanup(repo core.HistoryRepository, every time.Duration, stopCh <-chan struct{}, logger *zap.Logger) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := repo.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up history", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
