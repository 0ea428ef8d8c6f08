package mcp

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"

	"toolchat/model"
)

func weatherTool() NamedTool {
	return NamedTool{
		Server: "weather",
		Tool: mcptypes.Tool{
			Name:        "get_forecast",
			Description: "Get weather data",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"city": map[string]any{
						"type":        "string",
						"description": "City name",
					},
					"days": map[string]any{
						"type": "number",
					},
				},
				Required: []string{"city"},
			},
		},
	}
}

func TestToOpenAITools(t *testing.T) {
	tests := []struct {
		name     string
		input    []NamedTool
		expected int
		validate func(t *testing.T, result []openai.ChatCompletionToolUnionParam)
	}{
		{
			name:     "empty tools",
			input:    nil,
			expected: 0,
		},
		{
			name:     "namespaced name and parameters",
			input:    []NamedTool{weatherTool()},
			expected: 1,
			validate: func(t *testing.T, result []openai.ChatCompletionToolUnionParam) {
				fn := result[0].GetFunction()
				if fn == nil {
					t.Fatal("expected a function tool")
				}
				if fn.Name != "weather__get_forecast" {
					t.Errorf("expected name 'weather__get_forecast', got %q", fn.Name)
				}
				if fn.Description.Value != "Get weather data" {
					t.Errorf("description mismatch: %q", fn.Description.Value)
				}
				if fn.Parameters["type"] != "object" {
					t.Errorf("expected type 'object', got %v", fn.Parameters["type"])
				}
				required, ok := fn.Parameters["required"].([]string)
				if !ok || len(required) != 1 {
					t.Errorf("expected 1 required field, got %v", fn.Parameters["required"])
				}
				props, ok := fn.Parameters["properties"].(map[string]any)
				if !ok || len(props) != 2 {
					t.Errorf("expected 2 properties, got %v", fn.Parameters["properties"])
				}
			},
		},
		{
			name: "missing schema type defaults to object",
			input: []NamedTool{{
				Server: "fs",
				Tool:   mcptypes.Tool{Name: "list"},
			}},
			expected: 1,
			validate: func(t *testing.T, result []openai.ChatCompletionToolUnionParam) {
				params := result[0].GetFunction().Parameters
				if params["type"] != "object" {
					t.Errorf("expected type 'object', got %v", params["type"])
				}
				if _, ok := params["required"]; ok {
					t.Errorf("expected no required key")
				}
			},
		},
		{
			name: "defs are carried",
			input: []NamedTool{{
				Server: "fs",
				Tool: mcptypes.Tool{
					Name: "write",
					InputSchema: mcptypes.ToolInputSchema{
						Type: "object",
						Defs: map[string]any{"entry": map[string]any{"type": "string"}},
					},
				},
			}},
			expected: 1,
			validate: func(t *testing.T, result []openai.ChatCompletionToolUnionParam) {
				if _, ok := result[0].GetFunction().Parameters["$defs"]; !ok {
					t.Errorf("expected $defs in parameters")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToOpenAITools(tt.input)

			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestToAnthropicTools(t *testing.T) {
	tests := []struct {
		name     string
		input    []NamedTool
		expected int
		validate func(t *testing.T, result []anthropic.ToolUnionParam)
	}{
		{
			name:     "empty tools",
			input:    []NamedTool{},
			expected: 0,
		},
		{
			name:     "namespaced tool",
			input:    []NamedTool{weatherTool()},
			expected: 1,
			validate: func(t *testing.T, result []anthropic.ToolUnionParam) {
				tool := result[0].OfTool
				if tool == nil {
					t.Fatal("expected a custom tool")
				}
				if tool.Name != "weather__get_forecast" {
					t.Errorf("expected name 'weather__get_forecast', got %q", tool.Name)
				}
				if tool.Description.Value != "Get weather data" {
					t.Errorf("description mismatch")
				}
				if len(tool.InputSchema.Required) != 1 {
					t.Errorf("expected 1 required field, got %d", len(tool.InputSchema.Required))
				}
			},
		},
		{
			name: "defs go to extra fields",
			input: []NamedTool{{
				Server: "fs",
				Tool: mcptypes.Tool{
					Name: "write",
					InputSchema: mcptypes.ToolInputSchema{
						Defs: map[string]any{"entry": map[string]any{"type": "string"}},
					},
				},
			}},
			expected: 1,
			validate: func(t *testing.T, result []anthropic.ToolUnionParam) {
				if _, ok := result[0].OfTool.InputSchema.ExtraFields["$defs"]; !ok {
					t.Errorf("expected $defs in extra fields")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToAnthropicTools(tt.input)

			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		arguments    string
		expectServer string
		expectTool   string
		expectArgs   map[string]any
		expectError  bool
	}{
		{
			name:         "simple tool call",
			input:        "weather__get_forecast",
			arguments:    `{"city":"San Francisco"}`,
			expectServer: "weather",
			expectTool:   "get_forecast",
			expectArgs:   map[string]any{"city": "San Francisco"},
		},
		{
			name:         "empty arguments",
			input:        "clock__now",
			arguments:    "",
			expectServer: "clock",
			expectTool:   "now",
			expectArgs:   map[string]any{},
		},
		{
			name:         "tool name keeps later separators",
			input:        "fs__read__file",
			arguments:    "{}",
			expectServer: "fs",
			expectTool:   "read__file",
			expectArgs:   map[string]any{},
		},
		{
			name:        "missing server",
			input:       "get_forecast",
			arguments:   "{}",
			expectError: true,
		},
		{
			name:        "invalid arguments",
			input:       "weather__get_forecast",
			arguments:   "{city:",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := model.ToolCall{ID: "call_1", Type: "function"}
			call.Function.Name = tt.input
			call.Function.Arguments = tt.arguments

			server, tool, args, err := ParseToolCall(call)
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server != tt.expectServer || tool != tt.expectTool {
				t.Errorf("expected %s/%s, got %s/%s", tt.expectServer, tt.expectTool, server, tool)
			}
			if len(args) != len(tt.expectArgs) {
				t.Errorf("expected %d arguments, got %d", len(tt.expectArgs), len(args))
			}
			for key, want := range tt.expectArgs {
				if args[key] != want {
					t.Errorf("argument %q: expected %v, got %v", key, want, args[key])
				}
			}
		})
	}
}
