package aisdk

import (
	"encoding/json"

	jsonschema "github.com/swaggest/jsonschema-go"
)

// ChatTool represents a tool in the format expected by chat completion APIs
type ChatTool struct {
	Type     string           `json:"type"` // Always "function" for function tools
	Function ChatToolFunction `json:"function"`
}

// ChatToolFunction represents the function definition for chat APIs
type ChatToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"` // JSON Schema for parameters
}

// NewChatTool builds a function tool definition.
func NewChatTool(name, description string, parameters *jsonschema.Schema) *ChatTool {
	return &ChatTool{
		Type: "function",
		Function: ChatToolFunction{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ParametersJSON marshals the parameter schema for SDKs that want raw JSON.
// A tool without a schema gets an empty object schema.
func (t *ChatTool) ParametersJSON() (json.RawMessage, error) {
	if t.Function.Parameters == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	return json.Marshal(t.Function.Parameters)
}

// ParametersMap unmarshals the parameter schema into a generic map for SDKs
// that take schemas as maps.
func (t *ChatTool) ParametersMap() (map[string]any, error) {
	raw, err := t.ParametersJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
