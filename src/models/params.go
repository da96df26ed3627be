package models

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/skald-dev/skald/src/aisdk"
)

// StandardParameters are the sampling knobs standard models accept.
type StandardParameters struct {
	Temperature *float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	TopP        *float64 `mapstructure:"top_p" json:"top_p,omitempty"`
	TopK        *int     `mapstructure:"top_k" json:"top_k,omitempty"`
	MaxTokens   *int     `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
}

// ReasoningParameters are the knobs reasoning models accept. The sampling
// knobs are never sent to these models.
type ReasoningParameters struct {
	ReasoningEffort     string `mapstructure:"reasoning_effort" json:"reasoning_effort,omitempty"`
	MaxCompletionTokens *int   `mapstructure:"max_completion_tokens" json:"max_completion_tokens,omitempty"`
}

// ApplyOverrides decodes a per-model parameter map from config into the
// profile the model accepts and applies it to the request. Keys the profile
// does not know are dropped with a debug log, not an error, so a shared
// config block can serve mixed model sets.
func ApplyOverrides(req *aisdk.ChatCompletionRequest, info *aisdk.ModelInfo, overrides map[string]any, logger *slog.Logger) error {
	if req == nil || info == nil || len(overrides) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	if info.Reasoning {
		var params ReasoningParameters
		unused, err := decodeParams(overrides, &params)
		if err != nil {
			return fmt.Errorf("invalid parameters for reasoning model %s: %w", info.ID, err)
		}
		logDroppedKeys(logger, info, unused)
		if params.ReasoningEffort != "" {
			req.ReasoningEffort = params.ReasoningEffort
		}
		if params.MaxCompletionTokens != nil {
			req.MaxCompletionTokens = params.MaxCompletionTokens
		}
		// Reasoning models reject sampling knobs; clear anything a caller set.
		req.Temperature = nil
		req.TopP = nil
		req.TopK = nil
		req.MaxTokens = nil
		return nil
	}

	var params StandardParameters
	unused, err := decodeParams(overrides, &params)
	if err != nil {
		return fmt.Errorf("invalid parameters for model %s: %w", info.ID, err)
	}
	logDroppedKeys(logger, info, unused)
	if params.Temperature != nil {
		req.Temperature = params.Temperature
	}
	if params.TopP != nil {
		req.TopP = params.TopP
	}
	if params.TopK != nil {
		req.TopK = params.TopK
	}
	if params.MaxTokens != nil {
		req.MaxTokens = params.MaxTokens
	}
	req.ReasoningEffort = ""
	req.MaxCompletionTokens = nil
	return nil
}

func decodeParams(overrides map[string]any, target any) ([]string, error) {
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &meta,
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(overrides); err != nil {
		return nil, err
	}
	return meta.Unused, nil
}

func logDroppedKeys(logger *slog.Logger, info *aisdk.ModelInfo, unused []string) {
	for _, key := range unused {
		logger.Debug("dropping parameter the model does not accept", "model", info.ID, "parameter", key)
	}
}
