// Package schema builds the JSON Schema fragments hand-written tool
// definitions need, hiding swaggest's pointer-heavy literals. Tools defined
// from Go structs get their schemas reflected instead and never touch this
// package.
package schema

import (
	jsonschema "github.com/swaggest/jsonschema-go"
)

// String returns a schema for a described string field.
func String(description string) *jsonschema.Schema {
	strType := jsonschema.SimpleType("string")
	return &jsonschema.Schema{
		Type:        &jsonschema.Type{SimpleTypes: &strType},
		Description: &description,
	}
}

// Object assembles an object schema from named property schemas. required
// lists the property names the model must supply.
func Object(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	props := make(map[string]jsonschema.SchemaOrBool, len(properties))
	for name, prop := range properties {
		props[name] = jsonschema.SchemaOrBool{TypeObject: prop}
	}

	objType := jsonschema.SimpleType("object")
	return &jsonschema.Schema{
		Type:       &jsonschema.Type{SimpleTypes: &objType},
		Properties: props,
		Required:   required,
	}
}
