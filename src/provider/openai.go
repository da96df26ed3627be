package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

const defaultOpenAIRetryDelay = 500 * time.Millisecond

// OpenAIConfig carries the settings needed to construct an OpenAI provider.
// BaseURL is optional and supports Azure-style gateways and local
// compatibility servers.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// OpenAIProvider adapts the Chat Completions API to the neutral chat
// interface. Streamed tool calls arrive as fragments keyed by index; the
// stream wrapper accumulates them and emits each call once it is complete.
type OpenAIProvider struct {
	client     *openai.Client
	catalog    *models.Registry
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewOpenAIProvider(config OpenAIConfig, catalog *models.Registry) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if catalog == nil {
		catalog = models.NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultOpenAIRetryDelay
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		catalog:    catalog,
		maxRetries: config.MaxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("provider", models.ProviderOpenAI),
	}, nil
}

func (p *OpenAIProvider) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	var out []*aisdk.ModelInfo
	for _, info := range p.catalog.List() {
		if info.Provider == models.ProviderOpenAI {
			out = append(out, info)
		}
	}
	return out, nil
}

func (p *OpenAIProvider) Model(ctx context.Context, name string) (aisdk.ModelClient, error) {
	info, err := p.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	if info.Provider != models.ProviderOpenAI {
		return nil, fmt.Errorf("openai: model %q belongs to provider %q", name, info.Provider)
	}
	return &openaiModelClient{provider: p, info: info}, nil
}

type openaiModelClient struct {
	provider *OpenAIProvider
	info     *aisdk.ModelInfo
}

func (c *openaiModelClient) GetModelInfo() *aisdk.ModelInfo {
	return c.info
}

// CreateChatCompletion performs a blocking completion, retrying transient
// failures before surfacing them.
func (c *openaiModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	params := c.buildParams(req)

	var resp openai.ChatCompletionResponse
	err := RetryWithBackoff(ctx, c.provider.maxRetries, IsRetryable, func() error {
		var callErr error
		resp, callErr = c.provider.client.CreateChatCompletion(ctx, params)
		if callErr != nil {
			return c.wrapError(callErr)
		}
		return nil
	}, ExponentialBackoff(c.provider.retryDelay))
	if err != nil {
		return nil, err
	}
	return c.convertResponse(&resp), nil
}

// CreateChatCompletionStream opens a streaming completion. The HTTP request
// is issued eagerly, so open failures are retried here; mid-stream failures
// surface through Read.
func (c *openaiModelClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	params := c.buildParams(req)
	params.Stream = true

	var stream *openai.ChatCompletionStream
	err := RetryWithBackoff(ctx, c.provider.maxRetries, IsRetryable, func() error {
		var openErr error
		stream, openErr = c.provider.client.CreateChatCompletionStream(ctx, params)
		if openErr != nil {
			return c.wrapError(openErr)
		}
		return nil
	}, LinearBackoff(c.provider.retryDelay))
	if err != nil {
		return nil, err
	}
	return &openaiStream{
		stream:  stream,
		client:  c,
		calls:   make(map[int]*aisdk.ToolCall),
		argbufs: make(map[int]*strings.Builder),
	}, nil
}

func (c *openaiModelClient) buildParams(req *aisdk.ChatCompletionRequest) openai.ChatCompletionRequest {
	params := openai.ChatCompletionRequest{
		Model:    c.info.ID,
		Messages: convertOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertOpenAITools(req.Tools)
	}
	if len(req.Stop) > 0 {
		params.Stop = req.Stop
	}

	if req.ReasoningEffort != "" && c.info.SupportsParameter("reasoning_effort") {
		params.ReasoningEffort = req.ReasoningEffort
	}
	if req.MaxCompletionTokens != nil && c.info.SupportsParameter("max_completion_tokens") {
		params.MaxCompletionTokens = *req.MaxCompletionTokens
	}
	if req.Temperature != nil && c.info.SupportsParameter("temperature") {
		params.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil && c.info.SupportsParameter("top_p") {
		params.TopP = float32(*req.TopP)
	}
	if req.MaxTokens != nil && c.info.SupportsParameter("max_tokens") {
		params.MaxTokens = *req.MaxTokens
	}
	return params
}

func (c *openaiModelClient) convertResponse(resp *openai.ChatCompletionResponse) *aisdk.ChatCompletionResponse {
	out := &aisdk.ChatCompletionResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Usage: &aisdk.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, choice := range resp.Choices {
		msg := aisdk.NewAssistantMessage(choice.Message.Content)
		for _, tc := range choice.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = fabricateToolCallID(tc.Function.Name)
			}
			msg.ToolCalls = append(msg.ToolCalls, aisdk.ToolCall{
				ID:   id,
				Type: "function",
				Function: aisdk.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: finalizeArguments(tc.Function.Arguments, tc.Function.Name, c.provider.logger),
				},
			})
		}
		out.Choices = append(out.Choices, aisdk.Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}
	return out
}

func (c *openaiModelClient) wrapError(err error) error {
	if err == nil || IsProviderError(err) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		perr := NewError(models.ProviderOpenAI, c.info.ID, err).
			WithStatus(apiErr.HTTPStatusCode).
			WithMessage(apiErr.Message)
		if code, ok := apiErr.Code.(string); ok {
			perr = perr.WithCode(code)
		}
		return perr
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewError(models.ProviderOpenAI, c.info.ID, err).
			WithStatus(reqErr.HTTPStatusCode)
	}
	return NewError(models.ProviderOpenAI, c.info.ID, err)
}

// openaiStream accumulates tool-call fragments by index. A call is emitted
// when the provider reports finish_reason tool_calls or the stream ends,
// whichever comes first.
type openaiStream struct {
	stream *openai.ChatCompletionStream
	client *openaiModelClient

	pending []*aisdk.StreamChunk
	calls   map[int]*aisdk.ToolCall
	argbufs map[int]*strings.Builder
	order   []int
	done    bool
}

func (s *openaiStream) Read() (*aisdk.StreamChunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return nil, io.EOF
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.flushCalls()
			continue
		}
		if err != nil {
			return nil, s.client.wrapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]

		if choice.Delta.Content != "" {
			s.pending = append(s.pending, aisdk.TextChunk(choice.Delta.Content))
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := s.calls[idx]
			if !ok {
				call = &aisdk.ToolCall{Type: "function"}
				s.calls[idx] = call
				s.argbufs[idx] = &strings.Builder{}
				s.order = append(s.order, idx)
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			s.argbufs[idx].WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			s.flushCalls()
		}
	}
}

// flushCalls emits every accumulated call in first-seen order and resets the
// accumulator for any later batch in the same stream.
func (s *openaiStream) flushCalls() {
	for _, idx := range s.order {
		call := s.calls[idx]
		if call == nil {
			continue
		}
		if call.ID == "" {
			call.ID = fabricateToolCallID(call.Function.Name)
		}
		call.Function.Arguments = finalizeArguments(s.argbufs[idx].String(), call.Function.Name, s.client.provider.logger)
		s.pending = append(s.pending, aisdk.ToolCallChunk(*call))
	}
	s.calls = make(map[int]*aisdk.ToolCall)
	s.argbufs = make(map[int]*strings.Builder)
	s.order = nil
}

func (s *openaiStream) Close() error {
	return s.stream.Close()
}

func convertOpenAIMessages(messages []*aisdk.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		converted := openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case aisdk.RoleSystem:
			converted.Role = openai.ChatMessageRoleSystem
		case aisdk.RoleUser:
			converted.Role = openai.ChatMessageRoleUser
		case aisdk.RoleAssistant:
			converted.Role = openai.ChatMessageRoleAssistant
			for _, tc := range msg.ToolCalls {
				idx := len(converted.ToolCalls)
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					Index: &idx,
					ID:    tc.ID,
					Type:  openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: string(tc.NormalizedArguments()),
					},
				})
			}
		case aisdk.RoleTool:
			converted.Role = openai.ChatMessageRoleTool
			converted.Name = msg.Name
			converted.ToolCallID = msg.ToolCallID
		default:
			continue
		}
		out = append(out, converted)
	}
	return out
}

func convertOpenAITools(tools []*aisdk.ChatTool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		params, err := tool.ParametersMap()
		if err != nil {
			continue
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
