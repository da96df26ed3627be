package orclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/skald-dev/skald/src/aisdk"
)

// Wire shape of GET /models. Only the fields skald consumes are decoded.
type modelList struct {
	Data []wireModel `json:"data"`
}

type wireModel struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	ContextLength       int      `json:"context_length"`
	SupportedParameters []string `json:"supported_parameters"`
	TopProvider         struct {
		MaxCompletionTokens int `json:"max_completion_tokens"`
	} `json:"top_provider"`
}

func (m wireModel) toModelInfo() *aisdk.ModelInfo {
	info := &aisdk.ModelInfo{
		ID:                  m.ID,
		Name:                m.Name,
		Provider:            "openrouter",
		ContextLength:       m.ContextLength,
		MaxOutputTokens:     m.TopProvider.MaxCompletionTokens,
		SupportedParameters: m.SupportedParameters,
	}
	info.Reasoning = info.SupportsParameter("reasoning")
	return info
}

func (c *Client) listModelsUncached(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	resp, err := c.doRequestWithRetry(ctx, http.MethodGet, "/models", nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("openrouter: decode model list: %w", err)
	}

	models := make([]*aisdk.ModelInfo, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.toModelInfo())
	}
	return models, nil
}

// FindModel locates a model by exact ID, then by case-insensitive substring.
// Useful for CLI lookups where users type partial names.
func (c *Client) FindModel(ctx context.Context, query string) (*aisdk.ModelInfo, error) {
	models, err := c.modelCache.GetModelList(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range models {
		if m.ID == query {
			return m, nil
		}
	}

	lower := strings.ToLower(query)
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.ID), lower) || strings.Contains(strings.ToLower(m.Name), lower) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, query)
}
