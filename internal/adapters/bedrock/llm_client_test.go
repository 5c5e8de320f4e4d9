package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/email-priority/internal/core"
	"github.com/mikey/email-priority/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	reply    func(payload map[string]interface{}) []byte
	err      error
	payloads []map[string]interface{}
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(params.Body, &payload); err != nil {
		return nil, err
	}
	f.payloads = append(f.payloads, payload)
	return &bedrockruntime.InvokeModelOutput{Body: f.reply(payload)}, nil
}

func newClient(invoker ModelInvoker, modelID string) *BedrockClient {
	logger := zap.NewNop()
	return NewBedrockClient(invoker, modelID, 200, 0, 0.9, 4096, logger, utils.NewTextProcessor(logger))
}

func TestBedrockClaudeSentiment(t *testing.T) {
	invoker := &fakeInvoker{reply: func(map[string]interface{}) []byte {
		return []byte(`{"completion": " {\"label\": \"positive\"}"}`)
	}}
	client := newClient(invoker, "anthropic.claude-v2")

	label, err := client.ClassifySentiment(context.Background(), "Thanks, all sorted now!")
	require.NoError(t, err)
	assert.Equal(t, "positive", label)

	require.Len(t, invoker.payloads, 1)
	promptText := invoker.payloads[0]["prompt"].(string)
	assert.True(t, strings.HasPrefix(promptText, "\n\nHuman: "))
	assert.True(t, strings.HasSuffix(promptText, "\n\nAssistant:"))
	assert.Contains(t, promptText, "Thanks, all sorted now!")
	assert.EqualValues(t, 200, invoker.payloads[0]["max_tokens_to_sample"])
}

func TestBedrockTitanEmotion(t *testing.T) {
	invoker := &fakeInvoker{reply: func(map[string]interface{}) []byte {
		return []byte(`{"results": [{"outputText": "{\"emotions\": {\"sadness\": 0.8, \"joy\": 0.1}}"}]}`)
	}}
	client := newClient(invoker, "amazon.titan-text-express-v1")

	dist, err := client.ClassifyEmotion(context.Background(), "I lost all my photos")
	require.NoError(t, err)
	assert.Equal(t, core.EmotionDistribution{"sadness": 0.8, "joy": 0.1}, dist)
	assert.Contains(t, invoker.payloads[0], "textGenerationConfig")
}

func TestBedrockTitanEmptyResults(t *testing.T) {
	invoker := &fakeInvoker{reply: func(map[string]interface{}) []byte {
		return []byte(`{"results": []}`)
	}}

	_, err := newClient(invoker, "amazon.titan-text-lite-v1").ClassifySentiment(context.Background(), "hi")
	assert.Error(t, err)
}

func TestBedrockGenericModel(t *testing.T) {
	invoker := &fakeInvoker{reply: func(map[string]interface{}) []byte {
		return []byte(`{"text": "{\"label\": \"neutral\"}"}`)
	}}

	label, err := newClient(invoker, "meta.llama3-8b-instruct-v1:0").ClassifySentiment(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "neutral", label)
	assert.Contains(t, invoker.payloads[0], "max_tokens")
}

func TestBedrockInvokeError(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("throttled")}

	_, err := newClient(invoker, "anthropic.claude-v2").ClassifyEmotion(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to invoke Bedrock model")
}
