package models

import (
	"testing"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverridesStandardProfile(t *testing.T) {
	req := &aisdk.ChatCompletionRequest{Model: "gpt-4o"}
	info := standardModel("gpt-4o", "GPT-4o", ProviderOpenAI, 128000, 16384)

	err := ApplyOverrides(req, info, map[string]any{
		"temperature": 0.2,
		"top_p":       0.9,
		"top_k":       40,
		"max_tokens":  2048,
	}, nil)
	require.NoError(t, err)

	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
	require.NotNil(t, req.TopP)
	assert.InDelta(t, 0.9, *req.TopP, 1e-9)
	require.NotNil(t, req.TopK)
	assert.Equal(t, 40, *req.TopK)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 2048, *req.MaxTokens)
	assert.Empty(t, req.ReasoningEffort)
}

func TestApplyOverridesReasoningProfile(t *testing.T) {
	temp := 0.7
	req := &aisdk.ChatCompletionRequest{Model: "o3", Temperature: &temp}
	info := reasoningModel("o3", "o3", ProviderOpenAI, 200000, 100000)

	err := ApplyOverrides(req, info, map[string]any{
		"reasoning_effort":      "high",
		"max_completion_tokens": 4096,
		"temperature":           0.1, // not accepted by reasoning models
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "high", req.ReasoningEffort)
	require.NotNil(t, req.MaxCompletionTokens)
	assert.Equal(t, 4096, *req.MaxCompletionTokens)
	assert.Nil(t, req.Temperature)
	assert.Nil(t, req.TopP)
	assert.Nil(t, req.MaxTokens)
}

func TestApplyOverridesDropsUnknownKeys(t *testing.T) {
	req := &aisdk.ChatCompletionRequest{Model: "gemini-2.0-flash"}
	info := standardModel("gemini-2.0-flash", "Gemini 2.0 Flash", ProviderGoogle, 1048576, 8192)

	err := ApplyOverrides(req, info, map[string]any{
		"temperature":     0.5,
		"mystery_setting": "ignored",
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-9)
}

func TestApplyOverridesNilInputs(t *testing.T) {
	assert.NoError(t, ApplyOverrides(nil, nil, nil, nil))

	req := &aisdk.ChatCompletionRequest{Model: "gpt-4o"}
	assert.NoError(t, ApplyOverrides(req, standardModel("gpt-4o", "GPT-4o", ProviderOpenAI, 0, 0), nil, nil))
	assert.Nil(t, req.Temperature)
}
