package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/aisdk"
)

// RemoteTool adapts one server-advertised tool to the agent Tool interface,
// keeping the owning server's name for policy and audit decisions.
type RemoteTool struct {
	serverName string
	server     Server
	def        Tool
	schema     *jsonschema.Schema
}

// NewRemoteTool wraps a tool definition. The server's input schema is
// converted up front so a malformed schema rejects the tool at listing time,
// not mid-conversation.
func NewRemoteTool(serverName string, server Server, def Tool) (*RemoteTool, error) {
	schema, err := schemaFromDefinition(def.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", def.Name, err)
	}
	return &RemoteTool{
		serverName: serverName,
		server:     server,
		def:        def,
		schema:     schema,
	}, nil
}

// ServerName returns the name of the server that owns this tool.
func (rt *RemoteTool) ServerName() string {
	return rt.serverName
}

// GetType returns the tool type.
func (rt *RemoteTool) GetType() string {
	return "function"
}

// GetName returns the tool's name as advertised by the server.
func (rt *RemoteTool) GetName() string {
	return rt.def.Name
}

// GetDescription returns the tool's description.
func (rt *RemoteTool) GetDescription() string {
	return rt.def.Description
}

// GetParameters returns the converted input schema.
func (rt *RemoteTool) GetParameters() *jsonschema.Schema {
	return rt.schema
}

// Execute forwards the call to the owning server and flattens the result
// content. A server-side tool failure comes back as an error response; only
// transport and protocol failures surface as errors.
func (rt *RemoteTool) Execute(ctx context.Context, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	var args map[string]any
	if err := json.Unmarshal(call.NormalizedArguments(), &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %w", rt.def.Name, err)
	}

	result, err := rt.server.CallTool(ctx, rt.def.Name, args)
	if err != nil {
		return nil, err
	}

	resp := &aisdk.ToolResponse{
		Type:    "success",
		Content: []byte(flattenContent(result.Content)),
		IsError: result.IsError,
	}
	if result.IsError {
		resp.Type = "error"
	}
	return resp, nil
}

// flattenContent joins result content into one text blob. Non-text items
// are represented by a placeholder naming their type.
func flattenContent(items []ContentItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		switch {
		case item.Type == "text" || item.Text != "":
			parts = append(parts, item.Text)
		case item.MimeType != "":
			parts = append(parts, fmt.Sprintf("[%s content, %s]", item.Type, item.MimeType))
		default:
			parts = append(parts, fmt.Sprintf("[%s content]", item.Type))
		}
	}
	return strings.Join(parts, "\n")
}

// schemaFromDefinition converts the wire schema to the jsonschema model the
// toolbox works with. A missing schema becomes an empty object schema.
func schemaFromDefinition(in *SchemaObject) (*jsonschema.Schema, error) {
	raw := json.RawMessage(`{"type":"object"}`)
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal input schema: %w", err)
		}
		raw = data
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to convert input schema: %w", err)
	}
	return &schema, nil
}

var _ agent.Tool = (*RemoteTool)(nil)
