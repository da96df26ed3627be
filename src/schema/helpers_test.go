package schema

import (
	"encoding/json"
	"testing"

	jsonschema "github.com/swaggest/jsonschema-go"
)

func TestString(t *testing.T) {
	s := String("the file path")

	if s.Type == nil || s.Type.SimpleTypes == nil || *s.Type.SimpleTypes != jsonschema.SimpleType("string") {
		t.Fatalf("expected string type, got %+v", s.Type)
	}
	if s.Description == nil || *s.Description != "the file path" {
		t.Errorf("expected description to round-trip, got %v", s.Description)
	}
}

func TestObject(t *testing.T) {
	s := Object(map[string]*jsonschema.Schema{
		"question": String("the question"),
		"detail":   String("optional detail"),
	}, "question")

	if s.Type == nil || s.Type.SimpleTypes == nil || *s.Type.SimpleTypes != jsonschema.SimpleType("object") {
		t.Fatalf("expected object type, got %+v", s.Type)
	}
	if len(s.Properties) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(s.Properties))
	}
	if len(s.Required) != 1 || s.Required[0] != "question" {
		t.Errorf("expected required [question], got %v", s.Required)
	}
}

func TestObjectMarshalsToToolParameters(t *testing.T) {
	s := Object(map[string]*jsonschema.Schema{
		"summary": String("what was done"),
	})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Type != "object" {
		t.Errorf("expected type object on the wire, got %q", decoded.Type)
	}
	prop, ok := decoded.Properties["summary"]
	if !ok {
		t.Fatal("expected summary property on the wire")
	}
	if prop.Type != "string" || prop.Description != "what was done" {
		t.Errorf("unexpected summary property: %+v", prop)
	}
	if decoded.Required != nil {
		t.Errorf("expected no required list when none given, got %v", decoded.Required)
	}
}
