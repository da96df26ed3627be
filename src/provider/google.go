package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

const defaultGoogleRetryDelay = time.Second

// GoogleConfig carries the settings needed to construct a Gemini provider.
type GoogleConfig struct {
	APIKey     string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// GoogleProvider adapts the Gemini API to the neutral chat interface. Gemini
// delivers function calls whole rather than as argument fragments, and it
// assigns no call identifiers, so the adapter fabricates them and embeds the
// tool name for later recovery.
type GoogleProvider struct {
	client     *genai.Client
	catalog    *models.Registry
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewGoogleProvider(config GoogleConfig, catalog *models.Registry) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: api key is required")
	}
	if catalog == nil {
		catalog = models.NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}
	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultGoogleRetryDelay
	}
	return &GoogleProvider{
		client:     client,
		catalog:    catalog,
		maxRetries: config.MaxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("provider", models.ProviderGoogle),
	}, nil
}

func (p *GoogleProvider) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	var out []*aisdk.ModelInfo
	for _, info := range p.catalog.List() {
		if info.Provider == models.ProviderGoogle {
			out = append(out, info)
		}
	}
	return out, nil
}

func (p *GoogleProvider) Model(ctx context.Context, name string) (aisdk.ModelClient, error) {
	info, err := p.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	if info.Provider != models.ProviderGoogle {
		return nil, fmt.Errorf("google: model %q belongs to provider %q", name, info.Provider)
	}
	return &googleModelClient{provider: p, info: info}, nil
}

type googleModelClient struct {
	provider *GoogleProvider
	info     *aisdk.ModelInfo
}

func (c *googleModelClient) GetModelInfo() *aisdk.ModelInfo {
	return c.info
}

func (c *googleModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	contents := convertGoogleMessages(req.Messages)
	config := c.buildConfig(req)

	var resp *genai.GenerateContentResponse
	err := RetryWithBackoff(ctx, c.provider.maxRetries, IsRetryable, func() error {
		var callErr error
		resp, callErr = c.provider.client.Models.GenerateContent(ctx, c.info.ID, contents, config)
		if callErr != nil {
			return c.wrapError(callErr)
		}
		return nil
	}, ExponentialBackoff(c.provider.retryDelay))
	if err != nil {
		return nil, err
	}
	return c.convertResponse(resp), nil
}

// CreateChatCompletionStream opens a streaming completion. The SDK exposes
// the stream as a Go iterator; iter.Pull2 turns it into the pull-based shape
// the rest of the engine reads from.
func (c *googleModelClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	contents := convertGoogleMessages(req.Messages)
	config := c.buildConfig(req)

	streamIter := c.provider.client.Models.GenerateContentStream(ctx, c.info.ID, contents, config)
	next, stop := iter.Pull2(streamIter)
	return &googleStream{
		next:   next,
		stop:   stop,
		client: c,
	}, nil
}

func (c *googleModelClient) buildConfig(req *aisdk.ChatCompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system := systemPrompt(req.Messages); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: system},
			},
		}
	}

	maxTokens := 0
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	} else if c.info.MaxOutputTokens > 0 {
		maxTokens = c.info.MaxOutputTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(min(maxTokens, 1<<31-1))
	}

	if req.Temperature != nil && c.info.SupportsParameter("temperature") {
		temp := float32(*req.Temperature)
		config.Temperature = &temp
	}
	if req.TopP != nil && c.info.SupportsParameter("top_p") {
		topP := float32(*req.TopP)
		config.TopP = &topP
	}
	if req.TopK != nil && c.info.SupportsParameter("top_k") {
		topK := float32(*req.TopK)
		config.TopK = &topK
	}

	if len(req.Tools) > 0 {
		config.Tools = convertGoogleTools(req.Tools)
	}

	return config
}

func (c *googleModelClient) convertResponse(resp *genai.GenerateContentResponse) *aisdk.ChatCompletionResponse {
	out := aisdk.NewAssistantMessage("")
	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					text.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					out.ToolCalls = append(out.ToolCalls, googleToolCall(part.FunctionCall))
				}
			}
		}
	}
	out.Content = text.String()

	finishReason := "stop"
	if len(out.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}

	response := &aisdk.ChatCompletionResponse{
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   c.info.ID,
		Choices: []aisdk.Choice{
			{Index: 0, Message: out, FinishReason: finishReason},
		},
	}
	if resp != nil && resp.UsageMetadata != nil {
		response.Usage = &aisdk.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return response
}

// wrapError relies on message classification because the SDK does not expose
// a stable typed error across transports.
func (c *googleModelClient) wrapError(err error) error {
	if err == nil || IsProviderError(err) {
		return err
	}
	return NewError(models.ProviderGoogle, c.info.ID, err)
}

// googleStream drains a pulled Gemini iterator. Each response may carry both
// text and complete function calls, which are queued and handed out one chunk
// per Read.
type googleStream struct {
	next   func() (*genai.GenerateContentResponse, error, bool)
	stop   func()
	client *googleModelClient

	pending []*aisdk.StreamChunk
	done    bool
}

func (s *googleStream) Read() (*aisdk.StreamChunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return nil, io.EOF
		}

		resp, err, ok := s.next()
		if !ok {
			s.done = true
			continue
		}
		if err != nil {
			s.done = true
			return nil, s.client.wrapError(err)
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					s.pending = append(s.pending, aisdk.TextChunk(part.Text))
				}
				if part.FunctionCall != nil {
					s.pending = append(s.pending, aisdk.ToolCallChunk(googleToolCall(part.FunctionCall)))
				}
			}
		}
	}
}

func (s *googleStream) Close() error {
	s.stop()
	return nil
}

// googleToolCall converts a Gemini function call, fabricating an identifier
// because the API does not assign one.
func googleToolCall(call *genai.FunctionCall) aisdk.ToolCall {
	args, err := json.Marshal(call.Args)
	if err != nil || len(args) == 0 || string(args) == "null" {
		args = []byte("{}")
	}
	return aisdk.ToolCall{
		ID:   fabricateToolCallID(call.Name),
		Type: "function",
		Function: aisdk.FunctionCall{
			Name:      call.Name,
			Arguments: args,
		},
	}
}

// convertGoogleMessages maps the neutral history onto Gemini contents. The
// system message is lifted into SystemInstruction by the caller. Tool results
// ride in user-role contents as function responses.
func convertGoogleMessages(messages []*aisdk.Message) []*genai.Content {
	var out []*genai.Content
	for _, msg := range messages {
		if msg == nil || msg.Role == aisdk.RoleSystem {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case aisdk.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		switch msg.Role {
		case aisdk.RoleTool:
			name := msg.Name
			if name == "" {
				name = toolNameFromCallID(msg.ToolCallID, messages)
			}
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil || response == nil {
				response = map[string]any{"result": msg.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     name,
					Response: response,
				},
			})
		default:
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal(tc.NormalizedArguments(), &args); err != nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: tc.Function.Name,
						Args: args,
					},
				})
			}
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}

// toolNameFromCallID recovers a tool name from earlier assistant tool calls,
// falling back to the "call_<name>_<timestamp>" identifier layout.
func toolNameFromCallID(toolCallID string, messages []*aisdk.Message) string {
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.ID == toolCallID {
				return tc.Function.Name
			}
		}
	}
	parts := strings.Split(toolCallID, "_")
	if len(parts) >= 3 {
		return strings.Join(parts[1:len(parts)-1], "_")
	}
	return ""
}

func convertGoogleTools(tools []*aisdk.ChatTool) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		params, err := tool.ParametersMap()
		if err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  googleSchema(params),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{
		{FunctionDeclarations: declarations},
	}
}

// googleSchema converts a JSON Schema map into Gemini's schema type. Only the
// subset Gemini understands is carried over.
func googleSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = googleSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = googleSchema(items)
	}

	return schema
}
