package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

const defaultAnthropicMaxTokens = 4096

// maxEmptyStreamEvents bounds how many consecutive events may arrive without
// producing a chunk before the stream is treated as stalled.
const maxEmptyStreamEvents = 300

// AnthropicConfig carries the settings needed to construct an Anthropic
// provider. BaseURL is optional and exists for proxies and compatible
// gateways.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	Logger     *slog.Logger
}

// AnthropicProvider adapts the Anthropic Messages API to the neutral chat
// interface. Tool calls arrive as content blocks with incrementally streamed
// JSON input, which the stream wrapper reassembles into complete calls.
type AnthropicProvider struct {
	client  anthropic.Client
	catalog *models.Registry
	logger  *slog.Logger
}

// NewAnthropicProvider builds a provider from config. Transport-level retries
// are delegated to the SDK client.
func NewAnthropicProvider(config AnthropicConfig, catalog *models.Registry) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if catalog == nil {
		catalog = models.NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}
	return &AnthropicProvider{
		client:  anthropic.NewClient(opts...),
		catalog: catalog,
		logger:  logger.With("provider", models.ProviderAnthropic),
	}, nil
}

// GetModels lists the catalog entries served by this provider.
func (p *AnthropicProvider) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	var out []*aisdk.ModelInfo
	for _, info := range p.catalog.List() {
		if info.Provider == models.ProviderAnthropic {
			out = append(out, info)
		}
	}
	return out, nil
}

// Model resolves name against the catalog and returns a client bound to it.
func (p *AnthropicProvider) Model(ctx context.Context, name string) (aisdk.ModelClient, error) {
	info, err := p.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	if info.Provider != models.ProviderAnthropic {
		return nil, fmt.Errorf("anthropic: model %q belongs to provider %q", name, info.Provider)
	}
	return &anthropicModelClient{provider: p, info: info}, nil
}

type anthropicModelClient struct {
	provider *AnthropicProvider
	info     *aisdk.ModelInfo
}

func (c *anthropicModelClient) GetModelInfo() *aisdk.ModelInfo {
	return c.info
}

// CreateChatCompletion performs a single blocking completion request.
func (c *anthropicModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.provider.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}
	return c.convertResponse(msg), nil
}

// CreateChatCompletionStream opens a streaming completion. The returned
// stream yields text deltas as they arrive and complete tool calls once their
// input has finished streaming.
func (c *anthropicModelClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := c.provider.client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{
		stream: stream,
		client: c,
	}, nil
}

func (c *anthropicModelClient) buildParams(req *aisdk.ChatCompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := defaultAnthropicMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	} else if c.info.MaxOutputTokens > 0 {
		maxTokens = c.info.MaxOutputTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.info.ID),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: system},
		}
	}

	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	if req.Temperature != nil && c.info.SupportsParameter("temperature") {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil && c.info.SupportsParameter("top_p") {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.TopK != nil && c.info.SupportsParameter("top_k") {
		params.TopK = anthropic.Int(int64(*req.TopK))
	}

	return params, nil
}

func (c *anthropicModelClient) convertResponse(msg *anthropic.Message) *aisdk.ChatCompletionResponse {
	out := aisdk.NewAssistantMessage("")
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			out.ToolCalls = append(out.ToolCalls, aisdk.ToolCall{
				ID:   toolUse.ID,
				Type: "function",
				Function: aisdk.FunctionCall{
					Name:      toolUse.Name,
					Arguments: finalizeArguments(string(toolUse.Input), toolUse.Name, c.provider.logger),
				},
			})
		}
	}
	out.Content = text.String()

	finishReason := "stop"
	if string(msg.StopReason) == "tool_use" || len(out.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}

	return &aisdk.ChatCompletionResponse{
		ID:      msg.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   c.info.ID,
		Choices: []aisdk.Choice{
			{Index: 0, Message: out, FinishReason: finishReason},
		},
		Usage: &aisdk.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func (c *anthropicModelClient) wrapError(err error) error {
	if err == nil || IsProviderError(err) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return NewError(models.ProviderAnthropic, c.info.ID, err).
			WithStatus(apiErr.StatusCode).
			WithRequestID(apiErr.RequestID)
	}
	return NewError(models.ProviderAnthropic, c.info.ID, err)
}

// anthropicStream reassembles Messages API events into neutral chunks. Text
// deltas pass through immediately; tool_use blocks buffer their partial JSON
// until content_block_stop and are then emitted as one complete call.
type anthropicStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	client *anthropicModelClient

	pending []*aisdk.StreamChunk
	current *aisdk.ToolCall
	argbuf  strings.Builder
	done    bool
}

func (s *anthropicStream) Read() (*aisdk.StreamChunk, error) {
	emptyEvents := 0
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return nil, io.EOF
		}
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				return nil, s.client.wrapError(err)
			}
			// Stream closed without a message_stop. Flush anything still
			// buffered so a truncated final tool call is not lost.
			s.done = true
			s.flushCurrent()
			continue
		}

		event := s.stream.Current()
		switch event.Type {
		case "content_block_start":
			start := event.AsContentBlockStart()
			if start.ContentBlock.Type == "tool_use" {
				toolUse := start.ContentBlock.AsToolUse()
				s.current = &aisdk.ToolCall{
					ID:   toolUse.ID,
					Type: "function",
					Function: aisdk.FunctionCall{
						Name: toolUse.Name,
					},
				}
				s.argbuf.Reset()
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					s.pending = append(s.pending, aisdk.TextChunk(delta.Text))
				}
			case "input_json_delta":
				s.argbuf.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			s.flushCurrent()
		case "message_stop":
			s.done = true
			s.flushCurrent()
		case "error":
			return nil, NewError(models.ProviderAnthropic, s.client.info.ID,
				errors.New("stream reported error event")).WithReason(FailoverServerError)
		}

		if len(s.pending) == 0 && !s.done {
			emptyEvents++
			if emptyEvents > maxEmptyStreamEvents {
				return nil, NewError(models.ProviderAnthropic, s.client.info.ID,
					fmt.Errorf("no content after %d stream events", emptyEvents)).WithReason(FailoverTimeout)
			}
		} else {
			emptyEvents = 0
		}
	}
}

func (s *anthropicStream) flushCurrent() {
	if s.current == nil {
		return
	}
	s.current.Function.Arguments = finalizeArguments(s.argbuf.String(), s.current.Function.Name, s.client.provider.logger)
	s.pending = append(s.pending, aisdk.ToolCallChunk(*s.current))
	s.current = nil
	s.argbuf.Reset()
}

func (s *anthropicStream) Close() error {
	return s.stream.Close()
}

// convertAnthropicMessages maps the neutral history onto Messages API turns.
// System messages are lifted out by the caller. Consecutive tool results are
// grouped into a single user turn because they answer one assistant turn.
func convertAnthropicMessages(messages []*aisdk.Message) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case aisdk.RoleSystem:
			continue
		case aisdk.RoleUser:
			flushResults()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case aisdk.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal(tc.NormalizedArguments(), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case aisdk.RoleTool:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("anthropic: tool message for %q has no tool call id", msg.Name)
			}
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}
	flushResults()
	return out, nil
}

func convertAnthropicTools(tools []*aisdk.ChatTool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		raw, err := tool.ParametersJSON()
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", tool.Function.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", tool.Function.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if tool.Function.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		out = append(out, param)
	}
	return out, nil
}
