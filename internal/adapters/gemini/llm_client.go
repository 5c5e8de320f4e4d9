package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/email-priority/internal/adapters/prompt"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ContentGenerator is the part of *genai.GenerativeModel the client calls
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient is an implementation of the Classifier interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(prompt.System))

	c := newGeminiClient(model, modelName, maxBodySize, logger, textProcessor)
	c.client = client
	return c, nil
}

func newGeminiClient(model ContentGenerator, modelName string, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiClient {
	return &GeminiClient{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Name returns the model name
func (c *GeminiClient) Name() string {
	return c.modelName
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ClassifySentiment asks the model for a sentiment label
func (c *GeminiClient) ClassifySentiment(ctx context.Context, text string) (string, error) {
	reply, err := c.generate(ctx, prompt.Sentiment(c.textProcessor.ProcessText(text, c.maxBodySize)))
	if err != nil {
		return "", err
	}
	return prompt.ParseSentiment(reply)
}

// ClassifyEmotion asks the model for an emotion distribution
func (c *GeminiClient) ClassifyEmotion(ctx context.Context, text string) (core.EmotionDistribution, error) {
	reply, err := c.generate(ctx, prompt.Emotion(c.textProcessor.ProcessText(text, c.maxBodySize)))
	if err != nil {
		return nil, err
	}
	return prompt.ParseEmotion(reply)
}

func (c *GeminiClient) generate(ctx context.Context, userPrompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	c.logger.Debug("Gemini response received",
		zap.String("model", c.modelName),
		zap.Int("length", sb.Len()))

	return sb.String(), nil
}
