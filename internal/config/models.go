package config

import (
	"fmt"
	"time"
)

// ClassifierConfig selects the backends for the two classifier signals
type ClassifierConfig struct {
	SentimentProvider string
	EmotionProvider   string
}

// BreakerConfig represents the circuit breaker wrapped around classifiers
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// HuggingFaceConfig represents the configuration for the Hugging Face Inference API
type HuggingFaceConfig struct {
	APIKey          string
	BaseURL         string
	SentimentModel  string
	EmotionModel    string
	SentimentLabels map[string]string
	MaxBodySize     int
	Timeout         time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// PriorityConfig holds the VIP sender rules
type PriorityConfig struct {
	VIPDomains []string
	VIPSenders []string
}

// HistoryConfig represents the triage history store
type HistoryConfig struct {
	Enabled          bool
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
	RedisPrefix      string
}

// GetClassifier returns the classifier provider selection
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		SentimentProvider: c.GetString("classifier.sentiment.provider"),
		EmotionProvider:   c.GetString("classifier.emotion.provider"),
	}
}

// GetBreaker returns the circuit breaker configuration
func (c *Config) GetBreaker() (BreakerConfig, error) {
	interval, err := c.GetDuration("classifier.breaker.interval")
	if err != nil {
		return BreakerConfig{}, fmt.Errorf("invalid breaker interval: %w", err)
	}
	timeout, err := c.GetDuration("classifier.breaker.timeout")
	if err != nil {
		return BreakerConfig{}, fmt.Errorf("invalid breaker timeout: %w", err)
	}

	return BreakerConfig{
		Enabled:             c.GetBool("classifier.breaker.enabled"),
		MaxRequests:         uint32(c.GetInt("classifier.breaker.max_requests")),
		Interval:            interval,
		Timeout:             timeout,
		ConsecutiveFailures: uint32(c.GetInt("classifier.breaker.consecutive_failures")),
	}, nil
}

// GetHuggingFace returns the Hugging Face configuration
func (c *Config) GetHuggingFace() (HuggingFaceConfig, error) {
	timeout, err := c.GetDuration("huggingface.timeout")
	if err != nil {
		return HuggingFaceConfig{}, fmt.Errorf("invalid huggingface timeout: %w", err)
	}

	return HuggingFaceConfig{
		APIKey:          c.GetString("huggingface.api_key"),
		BaseURL:         c.GetString("huggingface.base_url"),
		SentimentModel:  c.GetString("huggingface.sentiment_model"),
		EmotionModel:    c.GetString("huggingface.emotion_model"),
		SentimentLabels: c.GetStringMapString("huggingface.sentiment_labels"),
		MaxBodySize:     c.GetInt("huggingface.max_body_size"),
		Timeout:         timeout,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetPriority returns the VIP sender rules
func (c *Config) GetPriority() PriorityConfig {
	return PriorityConfig{
		VIPDomains: c.GetStringSlice("priority.vip_domains"),
		VIPSenders: c.GetStringSlice("priority.vip_senders"),
	}
}

// GetHistory returns the history store configuration
func (c *Config) GetHistory() (HistoryConfig, error) {
	retention, err := c.GetDuration("history.retention")
	if err != nil {
		return HistoryConfig{}, fmt.Errorf("invalid history retention: %w", err)
	}
	cleanup, err := c.GetDuration("history.cleanup_frequency")
	if err != nil {
		return HistoryConfig{}, fmt.Errorf("invalid history cleanup frequency: %w", err)
	}

	return HistoryConfig{
		Enabled:          c.GetBool("history.enabled"),
		Type:             c.GetString("history.type"),
		Retention:        retention,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("history.sqlite_path"),
		MySQLDSN:         c.GetString("history.mysql_dsn"),
		RedisURL:         c.GetString("history.redis_url"),
		RedisPrefix:      c.GetString("history.redis_prefix"),
	}, nil
}
