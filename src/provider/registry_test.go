package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

type stubProvider struct {
	name   string
	client aisdk.ModelClient
}

func (s *stubProvider) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	return nil, nil
}

func (s *stubProvider) Model(ctx context.Context, name string) (aisdk.ModelClient, error) {
	return s.client, nil
}

type stubClient struct {
	info *aisdk.ModelInfo
}

func (s *stubClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	return &aisdk.ChatCompletionResponse{}, nil
}

func (s *stubClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	return nil, nil
}

func (s *stubClient) GetModelInfo() *aisdk.ModelInfo {
	return s.info
}

func TestRegistryRoutesModelToOwningProvider(t *testing.T) {
	catalog := models.NewRegistry()
	registry := NewRegistry(catalog, nil)

	info, err := catalog.Resolve("gpt-4o")
	require.NoError(t, err)
	registry.Register(models.ProviderOpenAI, &stubProvider{
		name:   models.ProviderOpenAI,
		client: &stubClient{info: info},
	})

	client, err := registry.Model(context.Background(), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.GetModelInfo().ID)
}

func TestRegistryRejectsUnconfiguredProvider(t *testing.T) {
	registry := NewRegistry(models.NewRegistry(), nil)

	_, err := registry.Model(context.Background(), "claude-sonnet-4-0")
	require.ErrorIs(t, err, ErrNoProvider)
}

func TestRegistryGetModelsFiltersByConfigured(t *testing.T) {
	catalog := models.NewRegistry()
	registry := NewRegistry(catalog, nil)
	registry.Register(models.ProviderAnthropic, &stubProvider{name: models.ProviderAnthropic})

	list, err := registry.GetModels(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, list)
	for _, info := range list {
		assert.Equal(t, models.ProviderAnthropic, info.Provider)
	}
}
