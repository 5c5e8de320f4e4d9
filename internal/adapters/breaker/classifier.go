package breaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Classifier guards a classifier backend with a circuit breaker so a
// failing inference service is not hammered by every incoming email
type Classifier struct {
	next   core.Classifier
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewClassifier wraps next with a circuit breaker
func NewClassifier(next core.Classifier, cfg config.BreakerConfig, logger *zap.Logger) *Classifier {
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Classifier circuit breaker state changed",
				zap.String("classifier", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Caller cancellations say nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Classifier{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Name returns the wrapped classifier's name
func (c *Classifier) Name() string {
	return c.next.Name()
}

// State reports the breaker state
func (c *Classifier) State() gobreaker.State {
	return c.cb.State()
}

// ClassifySentiment calls the wrapped classifier through the breaker
func (c *Classifier) ClassifySentiment(ctx context.Context, text string) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.ClassifySentiment(ctx, text)
	})
	if err != nil {
		return "", wrap(c.Name(), err)
	}
	return out.(string), nil
}

// ClassifyEmotion calls the wrapped classifier through the breaker
func (c *Classifier) ClassifyEmotion(ctx context.Context, text string) (core.EmotionDistribution, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.ClassifyEmotion(ctx, text)
	})
	if err != nil {
		return nil, wrap(c.Name(), err)
	}
	return out.(core.EmotionDistribution), nil
}

// Close closes the wrapped classifier if it holds resources
func (c *Classifier) Close() error {
	if closer, ok := c.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func wrap(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("classifier %s unavailable: %w", name, err)
	}
	return err
}
