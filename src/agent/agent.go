package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

// Agent binds a model client to a toolbox and a system prompt. It issues
// single completions; the conversation loop in the executor drives it.
type Agent struct {
	SystemPrompt string
	Model        aisdk.ModelClient
	Toolbox      *DefaultToolbox
	Logger       *slog.Logger

	// ModelParams are per-model sampling overrides from config, applied to
	// every request through the model's parameter profile.
	ModelParams map[string]any
}

// SendMessage appends message to the conversation history, requests one
// non-streaming completion, and returns the assistant message.
func (a *Agent) SendMessage(ctx context.Context, conversation *aisdk.Conversation, message *aisdk.Message) (*aisdk.Message, error) {
	messages := conversation.Messages
	if message != nil {
		messages = append(messages, message)
	}

	req, err := a.buildRequest(messages)
	if err != nil {
		return nil, err
	}
	response, err := a.Model.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 || response.Choices[0].Message == nil {
		return nil, fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message, nil
}

// OpenStream requests a streaming completion over the given history.
func (a *Agent) OpenStream(ctx context.Context, messages []*aisdk.Message) (aisdk.StreamInterface, error) {
	req, err := a.buildRequest(messages)
	if err != nil {
		return nil, err
	}
	req.Stream = true
	return a.Model.CreateChatCompletionStream(ctx, req)
}

// Complete requests a non-streaming completion over the given history.
func (a *Agent) Complete(ctx context.Context, messages []*aisdk.Message) (*aisdk.ChatCompletionResponse, error) {
	req, err := a.buildRequest(messages)
	if err != nil {
		return nil, err
	}
	return a.Model.CreateChatCompletion(ctx, req)
}

func (a *Agent) buildRequest(messages []*aisdk.Message) (*aisdk.ChatCompletionRequest, error) {
	var chatTools []*aisdk.ChatTool
	if a.Toolbox != nil {
		chatTools = ToChatTools(a.Toolbox.Tools())
	}
	req := &aisdk.ChatCompletionRequest{
		Messages: messages,
		Tools:    chatTools,
	}
	if len(a.ModelParams) > 0 {
		if err := models.ApplyOverrides(req, a.Model.GetModelInfo(), a.ModelParams, a.Logger); err != nil {
			return nil, err
		}
	}
	return req, nil
}
