package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/email-priority/internal/config"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/factory"
	"github.com/mikey/email-priority/internal/logging"
	"github.com/mikey/email-priority/internal/ports"
	"github.com/mikey/email-priority/internal/utils"
	"github.com/mikey/email-priority/internal/vip"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register history store
	if err := container.Provide(factory.NewHistoryFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryRepository, error) {
		return f.CreateHistoryRepository()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.HistoryFactory) (core.HistoryOptions, error) {
		return f.GetHistoryOptions()
	}); err != nil {
		return nil, err
	}

	if err := provideService(container); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the text processor, classifiers and VIP checker
func provideCommon(container *dig.Container) error {
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register classifiers
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.SentimentClassifier, error) {
		return f.CreateSentimentClassifier()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.EmotionClassifier, error) {
		return f.CreateEmotionClassifier()
	}); err != nil {
		return err
	}

	// Register VIP checker
	return container.Provide(func(cfg *config.Config, logger *zap.Logger) *vip.Checker {
		priorityCfg := cfg.GetPriority()
		return vip.NewChecker(priorityCfg.VIPDomains, priorityCfg.VIPSenders, logger)
	})
}

// provideService registers the priority service and the email filter
func provideService(container *dig.Container) error {
	if err := container.Provide(core.NewPriorityService); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	})
}
