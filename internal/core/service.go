package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyEmail is returned when there is no text to score
var ErrEmptyEmail = errors.New("email text is empty")

// HistoryOptions controls recording of priority decisions
type HistoryOptions struct {
	Enabled   bool
	Retention time.Duration
}

// PriorityService is the core service for email prioritisation
type PriorityService struct {
	sentiment SentimentClassifier
	emotion   EmotionClassifier
	history   HistoryRepository
	logger    *zap.Logger
	opts      HistoryOptions
}

// NewPriorityService creates a new priority service
func NewPriorityService(
	sentiment SentimentClassifier,
	emotion EmotionClassifier,
	history HistoryRepository,
	logger *zap.Logger,
	opts HistoryOptions,
) *PriorityService {
	return &PriorityService{
		sentiment: sentiment,
		emotion:   emotion,
		history:   history,
		logger:    logger,
		opts:      opts,
	}
}

// Analyze scores an email. The vip flag is applied as given.
func (s *PriorityService) Analyze(ctx context.Context, email *Email, vip bool) (*PriorityResult, error) {
	text := email.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyEmail
	}

	var (
		label    string
		emotions EmotionDistribution
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		label, err = s.sentiment.ClassifySentiment(gctx, text)
		if err != nil {
			return fmt.Errorf("sentiment classification failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		emotions, err = s.emotion.ClassifyEmotion(gctx, text)
		if err != nil {
			return fmt.Errorf("emotion classification failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := Evaluate(SignalInputs{
		Text:           text,
		SentimentLabel: label,
		Emotions:       emotions,
		VIP:            vip,
	})
	result.AnalyzedAt = time.Now()
	result.ProcessingID = uuid.New().String()
	result.ModelUsed = s.modelUsed()

	s.logger.Debug("Scored email",
		zap.String("sender", email.From),
		zap.String("processing_id", result.ProcessingID),
		zap.Int("score", result.Score),
		zap.String("band", string(result.Band)),
		zap.Float64("sentiment", result.Sentiment),
		zap.Float64("emotion", result.Emotion),
		zap.Float64("urgency", result.Urgency),
		zap.Bool("vip", vip))

	if s.opts.Enabled && s.history != nil {
		entry := &HistoryEntry{
			ID:         result.ProcessingID,
			Sender:     email.From,
			Subject:    email.Subject,
			Score:      result.Score,
			Band:       result.Band,
			Sentiment:  result.Sentiment,
			Emotion:    result.Emotion,
			Urgency:    result.Urgency,
			VIP:        vip,
			RecordedAt: result.AnalyzedAt,
			ExpiresAt:  result.AnalyzedAt.Add(s.opts.Retention),
		}
		if err := s.history.Record(ctx, entry); err != nil {
			s.logger.Error("Failed to record priority history", zap.Error(err))
		}
	}

	return result, nil
}

func (s *PriorityService) modelUsed() string {
	var names []string
	for _, c := range []any{s.sentiment, s.emotion} {
		if named, ok := c.(interface{ Name() string }); ok {
			if n := named.Name(); len(names) == 0 || names[0] != n {
				names = append(names, n)
			}
		}
	}
	return strings.Join(names, "+")
}
