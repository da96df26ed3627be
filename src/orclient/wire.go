package orclient

import (
	"encoding/json"

	"github.com/skald-dev/skald/src/aisdk"
)

// The wire types mirror the OpenAI-compatible chat schema OpenRouter exposes
// for every vendor it routes. The one mismatch with the neutral types is
// tool-call arguments: the wire carries them as a JSON-encoded string, not an
// embedded object.

type wireRequest struct {
	Model       string            `json:"model"`
	Messages    []wireMessage     `json:"messages"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	TopK        *int              `json:"top_k,omitempty"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []*aisdk.ChatTool `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
	Reasoning   *wireReasoning    `json:"reasoning,omitempty"`
	Usage       *wireUsageOptions `json:"usage,omitempty"`
}

type wireReasoning struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type wireUsageOptions struct {
	Include bool `json:"include"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   *aisdk.Usage `json:"usage"`
}

type wireChoice struct {
	Index        int          `json:"index"`
	Message      *wireMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

// buildWireRequest converts a neutral request into the wire shape. Reasoning
// parameters map onto OpenRouter's unified reasoning block; usage accounting
// is requested for streams, where it only arrives when asked for.
func buildWireRequest(req *aisdk.ChatCompletionRequest, stream bool) *wireRequest {
	wire := &wireRequest{
		Model:       req.Model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Stream:      stream,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	}

	if req.ReasoningEffort != "" {
		wire.Reasoning = &wireReasoning{Effort: req.ReasoningEffort}
	}
	if req.MaxCompletionTokens != nil && wire.MaxTokens == nil {
		wire.MaxTokens = req.MaxCompletionTokens
	}
	if stream {
		wire.Usage = &wireUsageOptions{Include: true}
	}

	for _, msg := range req.Messages {
		if msg == nil {
			continue
		}
		wire.Messages = append(wire.Messages, toWireMessage(msg))
	}
	return wire
}

func toWireMessage(msg *aisdk.Message) wireMessage {
	out := wireMessage{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	// Tool results carry the tool name on the wire; other roles drop it.
	if msg.Role == aisdk.RoleTool {
		out.Name = msg.Name
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, wireToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: wireFunctionCall{
				Name:      tc.Function.Name,
				Arguments: string(tc.NormalizedArguments()),
			},
		})
	}
	return out
}

func (wr *wireResponse) toResponse() *aisdk.ChatCompletionResponse {
	out := &aisdk.ChatCompletionResponse{
		ID:      wr.ID,
		Object:  wr.Object,
		Created: wr.Created,
		Model:   wr.Model,
		Usage:   wr.Usage,
	}
	for _, choice := range wr.Choices {
		out.Choices = append(out.Choices, aisdk.Choice{
			Index:        choice.Index,
			Message:      fromWireMessage(choice.Message),
			FinishReason: choice.FinishReason,
		})
	}
	return out
}

func fromWireMessage(msg *wireMessage) *aisdk.Message {
	if msg == nil {
		return nil
	}
	out := &aisdk.Message{
		Role:       msg.Role,
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, aisdk.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: aisdk.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: normalizeWireArguments(tc.Function.Arguments),
			},
		})
	}
	return out
}

func normalizeWireArguments(args string) json.RawMessage {
	if args == "" || args == "null" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}
