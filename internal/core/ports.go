package core

import (
	"context"
)

// SentimentClassifier returns a single sentiment label for a text
type SentimentClassifier interface {
	ClassifySentiment(ctx context.Context, text string) (string, error)
}

// EmotionClassifier returns a probability per emotion label for a text
type EmotionClassifier interface {
	ClassifyEmotion(ctx context.Context, text string) (EmotionDistribution, error)
}

// Classifier is a backend able to serve both signals
type Classifier interface {
	SentimentClassifier
	EmotionClassifier

	// Name identifies the backend model in results and logs
	Name() string
}

// HistoryRepository stores priority decisions for later triage review
type HistoryRepository interface {
	// Record stores an entry
	Record(ctx context.Context, entry *HistoryEntry) error

	// Get retrieves an entry by ID
	Get(ctx context.Context, id string) (*HistoryEntry, error)

	// Recent returns up to limit unexpired entries, newest first
	Recent(ctx context.Context, limit int) ([]*HistoryEntry, error)

	// Delete removes an entry
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
