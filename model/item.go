package model

// ItemType is the wire discriminator of a message item.
type ItemType string

const (
	ItemMessage   ItemType = "message"
	ItemThought   ItemType = "thought"
	ItemRender    ItemType = "render"
	ItemThinking  ItemType = "thinking"
	ItemTool      ItemType = "tool"
	ItemCallTools ItemType = "callTools"
)

// Item is the closed set of message item variants. Only types in this
// package implement it.
type Item interface {
	ItemID() string
	Type() ItemType
	item()
}

// MessageItem is plain content: usually a string, possibly a structured
// JSON payload.
type MessageItem struct {
	ID      string
	Content any
}

// ThoughtItem is one step of a tool-use trace. Content and Icon are
// rendering state derived from the other fields and are never persisted.
type ThoughtItem struct {
	ID              string
	ToolName        string
	Title           string
	Description     string
	Status          ThoughtStatus
	RequestContent  any
	ResponseContent any
	IsError         bool

	Content string
	Icon    ThoughtStatus
}

// RenderItem carries an artifact that needs the user's confirmation.
type RenderItem struct {
	ID      string
	Confirm Confirmation
}

// ThinkingItem holds model reasoning text.
type ThinkingItem struct {
	ID      string
	Content string
}

// ToolItem is the result of a tool call, linked to the call by ToolCallID.
type ToolItem struct {
	ID         string
	ToolCallID string
	Content    any
}

// CallToolsItem records the tool calls the model asked for.
type CallToolsItem struct {
	ID        string
	Content   any
	ToolCalls []ToolCall
}

// ToolCall is a model-issued function call. Arguments is the raw JSON text.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (i *MessageItem) ItemID() string   { return i.ID }
func (i *ThoughtItem) ItemID() string   { return i.ID }
func (i *RenderItem) ItemID() string    { return i.ID }
func (i *ThinkingItem) ItemID() string  { return i.ID }
func (i *ToolItem) ItemID() string      { return i.ID }
func (i *CallToolsItem) ItemID() string { return i.ID }

func (*MessageItem) Type() ItemType   { return ItemMessage }
func (*ThoughtItem) Type() ItemType   { return ItemThought }
func (*RenderItem) Type() ItemType    { return ItemRender }
func (*ThinkingItem) Type() ItemType  { return ItemThinking }
func (*ToolItem) Type() ItemType      { return ItemTool }
func (*CallToolsItem) Type() ItemType { return ItemCallTools }

func (*MessageItem) item()   {}
func (*ThoughtItem) item()   {}
func (*RenderItem) item()    {}
func (*ThinkingItem) item()  {}
func (*ToolItem) item()      {}
func (*CallToolsItem) item() {}
