// Package prompt holds the instructions sent to chat-style LLM backends
// and the parsing of their JSON replies.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/utils"
)

// System is the system message for chat completion APIs
const System = "You are a text classification system for customer support email. Respond only with JSON."

const sentimentFormat = `Classify the overall sentiment of the following customer email.
Respond with a JSON object containing:
- label: one of "negative", "neutral" or "positive"

Email:
%s

Respond only with the JSON object and nothing else.`

const emotionFormat = `Estimate how strongly the following customer email expresses each emotion.
Respond with a JSON object containing:
- emotions: an object mapping each of "anger", "fear", "sadness", "joy", "love" and "surprise"
  to a probability between 0 and 1

Email:
%s

Respond only with the JSON object and nothing else.`

type sentimentReply struct {
	Label string `json:"label"`
}

type emotionReply struct {
	Emotions map[string]float64 `json:"emotions"`
}

// Sentiment builds the sentiment prompt for an already processed text
func Sentiment(text string) string {
	return fmt.Sprintf(sentimentFormat, text)
}

// Emotion builds the emotion prompt for an already processed text
func Emotion(text string) string {
	return fmt.Sprintf(emotionFormat, text)
}

// ParseSentiment extracts the label from a model reply. The label is
// returned as given; unknown labels are scored as neutral downstream.
func ParseSentiment(reply string) (string, error) {
	var parsed sentimentReply
	if err := utils.DecodeJSONReply(reply, &parsed); err != nil {
		return "", err
	}
	return strings.TrimSpace(parsed.Label), nil
}

// ParseEmotion extracts the emotion distribution from a model reply
func ParseEmotion(reply string) (core.EmotionDistribution, error) {
	var parsed emotionReply
	if err := utils.DecodeJSONReply(reply, &parsed); err != nil {
		return nil, err
	}

	dist := make(core.EmotionDistribution, len(parsed.Emotions))
	for label, p := range parsed.Emotions {
		// Models occasionally answer outside [0,1]
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		dist[label] = p
	}
	return dist, nil
}
