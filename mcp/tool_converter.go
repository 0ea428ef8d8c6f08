package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"

	"toolchat/model"
)

// ToOpenAITools converts discovered tools to OpenAI function tools. Names
// are namespaced with the server so calls can be routed back.
//
// Tool structure:
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "weather__get_forecast",
//	    "description": "Get weather data",
//	    "parameters": {...}
//	  }
//	}
func ToOpenAITools(tools []NamedTool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Tool.Description),
				Parameters:  openai.FunctionParameters(inputSchemaMap(t.Tool.InputSchema)),
			},
		)
	}
	return result
}

// ToAnthropicTools converts discovered tools to Anthropic tool params.
func ToAnthropicTools(tools []NamedTool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: t.Tool.InputSchema.Properties,
		}
		if len(t.Tool.InputSchema.Required) > 0 {
			inputSchema.Required = t.Tool.InputSchema.Required
		}
		if t.Tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": t.Tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, t.Name())
		if t.Tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(t.Tool.Description)
		}
	}
	return result
}

func inputSchemaMap(schema mcptypes.ToolInputSchema) map[string]any {
	typ := schema.Type
	if typ == "" {
		typ = "object"
	}
	props := schema.Properties
	if props == nil {
		props = map[string]any{}
	}

	params := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(schema.Required) > 0 {
		params["required"] = schema.Required
	}
	if schema.Defs != nil {
		params["$defs"] = schema.Defs
	}
	return params
}

// ParseToolCall resolves a model tool call into the server, tool and
// arguments to invoke. Empty arguments decode to an empty map.
func ParseToolCall(call model.ToolCall) (server, tool string, args map[string]any, err error) {
	server, tool = ParseToolName(call.Function.Name)
	switch {
	case server == "":
		return "", "", nil, fmt.Errorf("tool %q is not namespaced with a server", call.Function.Name)
	case tool == "":
		return "", "", nil, fmt.Errorf("tool %q has an empty tool name", call.Function.Name)
	}

	args = map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return "", "", nil, fmt.Errorf("decode arguments for %s: %w", call.Function.Name, err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}
	return server, tool, args, nil
}
