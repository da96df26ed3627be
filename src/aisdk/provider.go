package aisdk

import (
	"context"
)

// Provider represents an AI provider interface
type Provider interface {
	// GetModels lists the models this provider knows about.
	GetModels(ctx context.Context) ([]*ModelInfo, error)
	// Model returns a client bound to the named model.
	Model(ctx context.Context, modelName string) (ModelClient, error)
}

// ModelClient represents a client bound to a specific model
type ModelClient interface {
	// CreateChatCompletion performs a non-streaming completion.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	// CreateChatCompletionStream opens a streaming completion. The returned
	// stream yields text increments and completed tool calls until io.EOF.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (StreamInterface, error)
	// GetModelInfo describes the bound model.
	GetModelInfo() *ModelInfo
}
