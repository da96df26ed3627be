package mcp

import (
	"context"
	"encoding/json"
	"time"
)

// ProtocolVersion is the MCP protocol revision sent during initialize.
const ProtocolVersion = "2024-11-05"

// DefaultRequestTimeout bounds a single JSON-RPC round trip.
const DefaultRequestTimeout = 30 * time.Second

// Standard JSON-RPC error codes.
const (
	ErrorCodeParse          = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternal       = -32603
)

// Request methods.
const (
	MethodInitialize    = "initialize"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
	MethodListPrompts   = "prompts/list"
	MethodGetPrompt     = "prompts/get"
	MethodPing          = "ping"
)

// Message is a JSON-RPC 2.0 message.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// InitializeParams for the initialize request.
type InitializeParams struct {
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    ClientCapability `json:"capabilities"`
	ClientInfo      *ClientInfo      `json:"clientInfo,omitempty"`
}

// InitializeResult from the initialize response.
type InitializeResult struct {
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    ServerCapability `json:"capabilities"`
	ServerInfo      *ServerInfo      `json:"serverInfo,omitempty"`
}

// ClientCapability describes client capabilities.
type ClientCapability struct {
	Experimental map[string]any      `json:"experimental,omitempty"`
	Sampling     *SamplingCapability `json:"sampling,omitempty"`
}

// ServerCapability describes server capabilities.
type ServerCapability struct {
	Tools        *ToolsCapability     `json:"tools,omitempty"`
	Resources    *ResourcesCapability `json:"resources,omitempty"`
	Prompts      *PromptsCapability   `json:"prompts,omitempty"`
	Experimental map[string]any       `json:"experimental,omitempty"`
}

// ToolsCapability indicates tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability indicates resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability indicates prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability for message sampling.
type SamplingCapability struct{}

// ClientInfo identifies the client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is a tool definition as advertised by a server.
type Tool struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	InputSchema *SchemaObject `json:"inputSchema"`
}

// SchemaObject is the subset of JSON Schema servers use for tool parameters.
type SchemaObject struct {
	Type        any            `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Required    []string       `json:"required,omitempty"`
	Items       any            `json:"items,omitempty"`
	Enum        []any          `json:"enum,omitempty"`
	Default     any            `json:"default,omitempty"`
}

// CallToolParams for tool execution.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult from tool execution.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is one piece of tool result content.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Resource is an MCP resource descriptor.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ReadResourceParams for resource reading.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult from resource reading.
type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// ResourceContent is resource payload, text or base64 blob.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Prompt is an MCP prompt template descriptor.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes a prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// GetPromptParams for prompt retrieval.
type GetPromptParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// GetPromptResult from prompt retrieval.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptMessage is one message in a prompt template.
type PromptMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Transport moves JSON-RPC messages to and from a server process.
type Transport interface {
	// Send sends a message.
	Send(ctx context.Context, message *Message) error

	// Receive blocks until the next message arrives.
	Receive(ctx context.Context) (*Message, error)

	// Close closes the transport.
	Close() error
}

// Server is one connected MCP server.
type Server interface {
	// Initialize performs the protocol handshake.
	Initialize(ctx context.Context, params *InitializeParams) (*InitializeResult, error)

	// ListTools returns the tools the server advertises.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool executes a tool.
	CallTool(ctx context.Context, name string, arguments map[string]any) (*CallToolResult, error)

	// ListResources returns available resources.
	ListResources(ctx context.Context) ([]Resource, error)

	// ReadResource reads a resource.
	ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error)

	// ListPrompts returns available prompts.
	ListPrompts(ctx context.Context) ([]Prompt, error)

	// GetPrompt retrieves a prompt.
	GetPrompt(ctx context.Context, name string, arguments map[string]any) (*GetPromptResult, error)

	// Close shuts the connection down.
	Close() error
}

// ServerConfig holds the launch configuration for one server. Timeout bounds
// each JSON-RPC round trip for this server.
type ServerConfig struct {
	Name          string            `json:"name"`
	Command       string            `json:"command"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	TransportType string            `json:"transport,omitempty"` // only "stdio" for now
	Timeout       time.Duration     `json:"timeout,omitempty"`
}
