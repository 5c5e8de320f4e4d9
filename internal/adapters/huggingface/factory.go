package huggingface

import (
	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/utils"
	"go.uber.org/zap"
)

// Factory creates Hugging Face inference clients
type Factory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Hugging Face factory
func NewFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClient creates a new inference client
func (f *Factory) CreateClient() (*Client, error) {
	hfCfg, err := f.cfg.GetHuggingFace()
	if err != nil {
		return nil, err
	}

	if hfCfg.APIKey == "" {
		f.logger.Warn("No Hugging Face API key configured, requests will be rate limited")
	}

	return NewClient(
		hfCfg.BaseURL,
		hfCfg.APIKey,
		hfCfg.SentimentModel,
		hfCfg.EmotionModel,
		hfCfg.SentimentLabels,
		hfCfg.MaxBodySize,
		hfCfg.Timeout,
		f.logger,
		f.textProcessor,
	), nil
}
