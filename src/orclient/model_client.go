package orclient

import (
	"context"

	"github.com/skald-dev/skald/src/aisdk"
)

// ModelClient is a Client bound to one model.
type ModelClient struct {
	client *Client
	info   *aisdk.ModelInfo
}

var _ aisdk.ModelClient = (*ModelClient)(nil)

// CreateChatCompletion performs a non-streaming completion against the bound
// model.
func (mc *ModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	return mc.client.createChatCompletion(ctx, mc.bind(req))
}

// CreateChatCompletionStream opens a streaming completion against the bound
// model.
func (mc *ModelClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	return mc.client.createChatCompletionStream(ctx, mc.bind(req))
}

// GetModelInfo describes the bound model.
func (mc *ModelClient) GetModelInfo() *aisdk.ModelInfo {
	return mc.info
}

// bind pins the request to the bound model without mutating the caller's
// request.
func (mc *ModelClient) bind(req *aisdk.ChatCompletionRequest) *aisdk.ChatCompletionRequest {
	if req.Model == mc.info.ID {
		return req
	}
	clone := *req
	clone.Model = mc.info.ID
	return &clone
}
