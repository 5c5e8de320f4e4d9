package core

import (
	"strings"
	"time"
)

// Email represents an email message
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// Text returns the content that gets scored: the subject followed by the body
func (e *Email) Text() string {
	if strings.TrimSpace(e.Subject) == "" {
		return e.Body
	}
	return e.Subject + "\n\n" + e.Body
}

// EmotionDistribution maps an emotion label to its probability
type EmotionDistribution map[string]float64

// PriorityBand is the triage bucket derived from a priority score
type PriorityBand string

const (
	BandHigh   PriorityBand = "High"
	BandMedium PriorityBand = "Medium"
	BandLow    PriorityBand = "Low"
)

// Action returns the recommended handling for the band
func (b PriorityBand) Action() string {
	switch b {
	case BandHigh:
		return "escalate immediately"
	case BandMedium:
		return "respond soon"
	default:
		return "can wait"
	}
}

// SignalInputs holds the raw classifier outputs for one email
type SignalInputs struct {
	Text           string
	SentimentLabel string
	Emotions       EmotionDistribution
	VIP            bool
}

// PriorityResult represents the result of priority analysis
type PriorityResult struct {
	Score          int
	Band           PriorityBand
	Sentiment      float64
	Emotion        float64
	Urgency        float64
	VIP            bool
	SentimentLabel string
	AnalyzedAt     time.Time
	ModelUsed      string
	ProcessingID   string
}

// HistoryEntry is a recorded priority decision
type HistoryEntry struct {
	ID         string
	Sender     string
	Subject    string
	Score      int
	Band       PriorityBand
	Sentiment  float64
	Emotion    float64
	Urgency    float64
	VIP        bool
	RecordedAt time.Time
	ExpiresAt  time.Time
}
