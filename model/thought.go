package model

import (
	"encoding/json"
	"strings"
)

type ThoughtStatus string

const (
	ThoughtPending ThoughtStatus = "pending"
	ThoughtSuccess ThoughtStatus = "success"
	ThoughtError   ThoughtStatus = "error"
)

// NewThought starts a pending thought for a tool invocation.
func NewThought(id, toolName string, request any) *ThoughtItem {
	t := &ThoughtItem{
		ID:             id,
		ToolName:       toolName,
		RequestContent: request,
	}
	RegenerateThought(t)
	return t
}

// Resolve records the tool response and refreshes the derived fields.
func (t *ThoughtItem) Resolve(response any, isError bool) {
	t.ResponseContent = response
	t.IsError = isError
	t.Status = ""
	t.Description = ""
	RegenerateThought(t)
}

func (t *ThoughtItem) Pending() bool {
	return t.ResponseContent == nil && !t.IsError
}

// RegenerateThought rebuilds the UI state of a thought from its request,
// response and error flag. It is deterministic: the same persisted fields
// always give the same Content and Icon.
func RegenerateThought(t *ThoughtItem) {
	switch {
	case t.IsError:
		t.Icon = ThoughtError
	case t.Pending():
		t.Icon = ThoughtPending
	default:
		t.Icon = ThoughtSuccess
	}
	if t.Status == "" {
		t.Status = t.Icon
	}

	if t.Title == "" {
		name := t.ToolName
		if name == "" {
			name = "tool"
		}
		t.Title = "Tool call: " + name
	}
	if t.Description == "" {
		switch t.Icon {
		case ThoughtError:
			t.Description = "Failed"
		case ThoughtPending:
			t.Description = "Running"
		default:
			t.Description = "Succeeded"
		}
	}

	var b strings.Builder
	b.WriteString("**Request**\n\n")
	b.WriteString(renderBlock(t.RequestContent))
	if !t.Pending() {
		b.WriteString("\n\n**Response**\n\n")
		b.WriteString(renderBlock(t.ResponseContent))
	}
	t.Content = b.String()
}

func renderBlock(v any) string {
	switch c := v.(type) {
	case nil:
		return "_empty_"
	case string:
		return c
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "_unrenderable_"
	}
	return "```json\n" + string(data) + "\n```"
}
