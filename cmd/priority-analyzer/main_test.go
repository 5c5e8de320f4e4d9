package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mikey/email-priority/internal/adapters/history"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShowHistoryDisabled(t *testing.T) {
	err := showHistory(context.Background(), nil, &di.CLIFlags{Recent: 5}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "history is disabled")
}

func TestShowHistory(t *testing.T) {
	store := history.NewMemoryHistory(zap.NewNop(), 0)
	defer store.Stop()

	now := time.Now()
	for i, id := range []string{"older", "newer"} {
		require.NoError(t, store.Record(context.Background(), &core.HistoryEntry{
			ID:         id,
			Sender:     "boss@example.com",
			Subject:    "Server down",
			Score:      70 + i,
			Band:       core.BandMedium,
			RecordedAt: now.Add(time.Duration(i) * time.Minute),
			ExpiresAt:  now.Add(time.Hour),
		}))
	}

	var out bytes.Buffer
	require.NoError(t, showHistory(context.Background(), store, &di.CLIFlags{Recent: 1}, &out))
	assert.Contains(t, out.String(), "newer")
	assert.NotContains(t, out.String(), "older")

	out.Reset()
	require.NoError(t, showHistory(context.Background(), store, &di.CLIFlags{EntryID: "older"}, &out))
	assert.Contains(t, out.String(), "older   70  Medium")

	err := showHistory(context.Background(), store, &di.CLIFlags{EntryID: "missing"}, &out)
	assert.ErrorIs(t, err, history.ErrNotFound)
}
