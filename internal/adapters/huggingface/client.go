package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/utils"
	"go.uber.org/zap"
)

// Client calls text-classification models on the Hugging Face Inference API
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	sentimentModel string
	emotionModel   string
	labels         map[string]string
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
	Options    inferenceOption     `json:"options"`
}

// inferenceParameters leaves TopK nil so it is sent as null, which asks
// text-classification models for every label rather than the top one
type inferenceParameters struct {
	TopK *int `json:"top_k"`
}

type inferenceOption struct {
	WaitForModel bool `json:"wait_for_model"`
}

// LabelScore is one entry of a text-classification response
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewClient creates a new Hugging Face inference client. labels maps raw
// model labels (lower-cased) to the label reported as sentiment.
func NewClient(
	baseURL string,
	apiKey string,
	sentimentModel string,
	emotionModel string,
	labels map[string]string,
	maxBodySize int,
	timeout time.Duration,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Client {
	normalized := make(map[string]string, len(labels))
	for k, v := range labels {
		normalized[strings.ToLower(k)] = v
	}

	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		sentimentModel: sentimentModel,
		emotionModel:   emotionModel,
		labels:         normalized,
		maxBodySize:    maxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}
}

// Name identifies the backend
func (c *Client) Name() string {
	return "huggingface"
}

// ClassifySentiment returns the highest scoring sentiment label
func (c *Client) ClassifySentiment(ctx context.Context, text string) (string, error) {
	scores, err := c.classify(ctx, c.sentimentModel, text)
	if err != nil {
		return "", err
	}
	if len(scores) == 0 {
		return "", fmt.Errorf("empty response from sentiment model %s", c.sentimentModel)
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}

	if mapped, ok := c.labels[strings.ToLower(top.Label)]; ok {
		return mapped, nil
	}
	return top.Label, nil
}

// ClassifyEmotion returns the score of every emotion label the model reports
func (c *Client) ClassifyEmotion(ctx context.Context, text string) (core.EmotionDistribution, error) {
	scores, err := c.classify(ctx, c.emotionModel, text)
	if err != nil {
		return nil, err
	}

	dist := make(core.EmotionDistribution, len(scores))
	for _, s := range scores {
		dist[s.Label] += s.Score
	}
	return dist, nil
}

func (c *Client) classify(ctx context.Context, model string, text string) ([]LabelScore, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:  c.textProcessor.ProcessText(text, c.maxBodySize),
		Options: inferenceOption{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call inference API for %s: %w", model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference API error for %s: %d: %s", model, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	scores, err := decodeScores(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", model, err)
	}

	c.logger.Debug("Inference completed",
		zap.String("model", model),
		zap.Int("labels", len(scores)),
		zap.Duration("duration", time.Since(start)))

	return scores, nil
}

// decodeScores accepts both the flat and the per-input nested response shapes
func decodeScores(raw []byte) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return flat, nil
}
