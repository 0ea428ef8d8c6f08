package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a resolved structural validator for a response payload.
type Schema struct {
	name     string
	resolved *jsonschema.Resolved
}

// NewSchema resolves s once so it can be applied to many responses.
func NewSchema(name string, s *jsonschema.Schema) (*Schema, error) {
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema %s: %w", name, err)
	}
	return &Schema{name: name, resolved: resolved}, nil
}

func mustSchema(name string, s *jsonschema.Schema) *Schema {
	schema, err := NewSchema(name, s)
	if err != nil {
		panic(err)
	}
	return schema
}

func (s *Schema) Name() string { return s.name }

// Validate checks a raw JSON payload against the schema.
func (s *Schema) Validate(raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("%s: empty result", s.name)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

var (
	// AnyResultSchema accepts any JSON object.
	AnyResultSchema = mustSchema("Result", &jsonschema.Schema{Type: "object"})

	InitializeResultSchema = mustSchema("InitializeResult", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"protocolVersion"},
		Properties: map[string]*jsonschema.Schema{
			"protocolVersion": {Type: "string"},
			"capabilities":    {Type: "object"},
			"serverInfo":      {Type: "object"},
		},
	})

	ListToolsResultSchema = mustSchema("ListToolsResult", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"tools"},
		Properties: map[string]*jsonschema.Schema{
			"tools": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"name", "inputSchema"},
					Properties: map[string]*jsonschema.Schema{
						"name":        {Type: "string"},
						"description": {Type: "string"},
						"inputSchema": {Type: "object"},
					},
				},
			},
			"nextCursor": {Type: "string"},
		},
	})

	CallToolResultSchema = mustSchema("CallToolResult", &jsonschema.Schema{
		Type:     "object",
		Required: []string{"content"},
		Properties: map[string]*jsonschema.Schema{
			"content": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:       "object",
					Required:   []string{"type"},
					Properties: map[string]*jsonschema.Schema{"type": {Type: "string"}},
				},
			},
			"isError": {Type: "boolean"},
		},
	})
)
