package factory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mikey/email-priority/internal/adapters/bedrock"
	"github.com/mikey/email-priority/internal/adapters/breaker"
	"github.com/mikey/email-priority/internal/adapters/gemini"
	"github.com/mikey/email-priority/internal/adapters/huggingface"
	"github.com/mikey/email-priority/internal/adapters/openai"
	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates sentiment and emotion classifiers. A provider
// configured for both signals is built once and shared.
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor

	mu      sync.Mutex
	created map[string]core.Classifier
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		created:       make(map[string]core.Classifier),
	}
}

// CreateSentimentClassifier creates the configured sentiment classifier
func (f *ClassifierFactory) CreateSentimentClassifier() (core.SentimentClassifier, error) {
	return f.classifier(f.cfg.GetClassifier().SentimentProvider)
}

// CreateEmotionClassifier creates the configured emotion classifier
func (f *ClassifierFactory) CreateEmotionClassifier() (core.EmotionClassifier, error) {
	return f.classifier(f.cfg.GetClassifier().EmotionProvider)
}

func (f *ClassifierFactory) classifier(provider string) (core.Classifier, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.created[provider]; ok {
		return c, nil
	}

	c, err := f.build(provider)
	if err != nil {
		return nil, err
	}

	breakerCfg, err := f.cfg.GetBreaker()
	if err != nil {
		return nil, err
	}
	if breakerCfg.Enabled {
		c = breaker.NewClassifier(c, breakerCfg, f.logger)
	}

	f.logger.Info("Created classifier", zap.String("provider", provider), zap.Bool("breaker", breakerCfg.Enabled))
	f.created[provider] = c
	return c, nil
}

func (f *ClassifierFactory) build(provider string) (core.Classifier, error) {
	switch provider {
	case "huggingface":
		return huggingface.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", provider)
	}
}

// Close releases classifiers that hold connections
func (f *ClassifierFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for name, c := range f.created {
		closer, ok := c.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			f.logger.Warn("Failed to close classifier", zap.String("provider", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
