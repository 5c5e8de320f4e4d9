package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a model reply contains no JSON object
var ErrNoJSONObject = errors.New("no JSON object found in response")

// DecodeJSONReply decodes a model reply into out. Replies wrapped in prose
// or markdown fences are reduced to the outermost {...} span first.
func DecodeJSONReply(reply string, out any) error {
	trimmed := strings.TrimSpace(reply)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return ErrNoJSONObject
	}

	if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}
