package aisdk

import (
	"encoding/json"
	"time"
)

// Message roles. The set is closed; adapters reject anything else.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation message in the neutral format shared by
// every provider adapter. Tool messages answer exactly one ToolCall and carry
// both the tool name and the originating call ID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content, CreatedAt: time.Now()}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now()}
}

// NewToolMessage creates a tool result message answering the given call.
func NewToolMessage(name, toolCallID, content string) *Message {
	return &Message{
		Role:       RoleTool,
		Content:    content,
		Name:       name,
		ToolCallID: toolCallID,
		CreatedAt:  time.Now(),
	}
}

// ToolCall is a model-requested tool invocation attached to an assistant
// message.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-object arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// NormalizedArguments returns the call arguments, substituting an empty JSON
// object when the model sent nothing usable. Arguments leaving the process are
// always a JSON object.
func (tc ToolCall) NormalizedArguments() json.RawMessage {
	trimmed := string(tc.Function.Arguments)
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}")
	}
	return tc.Function.Arguments
}

// ToolResponse is the neutral result of a tool execution, before the engine
// flattens it into the single string fed back to the model.
type ToolResponse struct {
	Type     string            `json:"type"`
	Content  []byte            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	IsError  bool              `json:"is_error,omitempty"`
}

// ChatCompletionRequest is a provider-neutral completion request. Which
// parameter fields a model accepts is decided by the catalog; adapters omit
// fields the target model rejects.
type ChatCompletionRequest struct {
	Model               string            `json:"model"`
	Messages            []*Message        `json:"messages"`
	Temperature         *float64          `json:"temperature,omitempty"`
	TopP                *float64          `json:"top_p,omitempty"`
	TopK                *int              `json:"top_k,omitempty"`
	MaxTokens           *int              `json:"max_tokens,omitempty"`
	ReasoningEffort     string            `json:"reasoning_effort,omitempty"`
	MaxCompletionTokens *int              `json:"max_completion_tokens,omitempty"`
	Stream              bool              `json:"stream,omitempty"`
	Stop                []string          `json:"stop,omitempty"`
	Tools               []*ChatTool       `json:"tools,omitempty"`
	ToolChoice          string            `json:"tool_choice,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// ChatCompletionResponse is a provider-neutral completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative. Adapters always produce exactly one.
type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChunkType discriminates StreamChunk variants.
type ChunkType string

const (
	// ChunkTypeText carries an increment of assistant prose.
	ChunkTypeText ChunkType = "text"
	// ChunkTypeToolCall carries one complete tool call request.
	ChunkTypeToolCall ChunkType = "tool_call"
)

// StreamChunk is one unit of streamed model output. Exactly one variant field
// is populated, selected by Type. Text increments arrive as the model produces
// them; tool calls are emitted only once their arguments have been fully
// accumulated by the adapter.
type StreamChunk struct {
	Type     ChunkType `json:"type"`
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// TextChunk wraps a text increment.
func TextChunk(text string) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeText, Text: text}
}

// ToolCallChunk wraps a completed tool call.
func ToolCallChunk(call ToolCall) *StreamChunk {
	return &StreamChunk{Type: ChunkTypeToolCall, ToolCall: &call}
}

// StreamInterface is the pull contract for streaming responses. Read blocks
// until the next chunk is available and returns io.EOF once the model turn is
// complete. Close releases the underlying transport; it is safe to call more
// than once.
type StreamInterface interface {
	Read() (*StreamChunk, error)
	Close() error
}

// ModelInfo describes a model known to the catalog. Reasoning models take
// effort and completion-token limits instead of the sampling knobs.
type ModelInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Provider            string   `json:"provider"`
	ContextLength       int      `json:"context_length"`
	MaxOutputTokens     int      `json:"max_output_tokens,omitempty"`
	Reasoning           bool     `json:"reasoning,omitempty"`
	SupportedParameters []string `json:"supported_parameters,omitempty"`
}

// SupportsParameter reports whether the model accepts the named request
// parameter.
func (m *ModelInfo) SupportsParameter(name string) bool {
	for _, p := range m.SupportedParameters {
		if p == name {
			return true
		}
	}
	return false
}
