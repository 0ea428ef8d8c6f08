package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

type wireItem struct {
	ID         string          `json:"id"`
	Type       ItemType        `json:"type"`
	Content    json.RawMessage `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// wireThought is the persisted thought. It deliberately has no content or
// icon field.
type wireThought struct {
	ToolName        string        `json:"toolName,omitempty"`
	Title           string        `json:"title,omitempty"`
	Description     string        `json:"description,omitempty"`
	Status          ThoughtStatus `json:"status,omitempty"`
	RequestContent  any           `json:"requestContent,omitempty"`
	ResponseContent any           `json:"responseContent,omitempty"`
	IsError         bool          `json:"isError"`
}

// EncodeItem produces the storage form of one item.
func EncodeItem(item Item) ([]byte, error) {
	w, err := toWire(item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// EncodeItems produces the JSON array stored for non-user messages.
func EncodeItems(items []Item) (string, error) {
	wires := make([]wireItem, 0, len(items))
	for _, item := range items {
		w, err := toWire(item)
		if err != nil {
			return "", err
		}
		wires = append(wires, w)
	}
	data, err := json.Marshal(wires)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(data), nil
}

func toWire(item Item) (wireItem, error) {
	if item == nil {
		return wireItem{}, errors.New("encode item: nil item")
	}

	w := wireItem{ID: item.ItemID(), Type: item.Type()}
	var content any

	switch it := item.(type) {
	case *MessageItem:
		content = it.Content
	case *ThoughtItem:
		content = wireThought{
			ToolName:        it.ToolName,
			Title:           it.Title,
			Description:     it.Description,
			Status:          it.Status,
			RequestContent:  it.RequestContent,
			ResponseContent: it.ResponseContent,
			IsError:         it.IsError,
		}
	case *RenderItem:
		content = it.Confirm
	case *ThinkingItem:
		content = it.Content
	case *ToolItem:
		content = it.Content
		w.ToolCallID = it.ToolCallID
	case *CallToolsItem:
		content = it.Content
		w.ToolCalls = it.ToolCalls
	default:
		return wireItem{}, fmt.Errorf("encode item %s: unsupported item type %T", item.ItemID(), item)
	}

	if content != nil {
		raw, err := json.Marshal(content)
		if err != nil {
			return wireItem{}, fmt.Errorf("encode item %s: %w", w.ID, err)
		}
		w.Content = raw
	}
	return w, nil
}

// DecodeItem parses one stored item. Thought items come back with Content
// and Icon regenerated.
func DecodeItem(data []byte) (Item, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("item is not valid JSON")
	}
	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, errors.New("item has no type")
	}

	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("item: %w", err)
	}

	switch ItemType(kind.String()) {
	case ItemMessage:
		content, err := decodeAny(w.Content)
		if err != nil {
			return nil, err
		}
		return &MessageItem{ID: w.ID, Content: content}, nil

	case ItemThought:
		var wt wireThought
		if len(w.Content) > 0 {
			if err := json.Unmarshal(w.Content, &wt); err != nil {
				return nil, fmt.Errorf("thought %s: %w", w.ID, err)
			}
		}
		t := &ThoughtItem{
			ID:              w.ID,
			ToolName:        wt.ToolName,
			Title:           wt.Title,
			Description:     wt.Description,
			Status:          wt.Status,
			RequestContent:  wt.RequestContent,
			ResponseContent: wt.ResponseContent,
			IsError:         wt.IsError,
		}
		RegenerateThought(t)
		return t, nil

	case ItemRender:
		var c Confirmation
		if len(w.Content) > 0 {
			if err := json.Unmarshal(w.Content, &c); err != nil {
				return nil, fmt.Errorf("render %s: %w", w.ID, err)
			}
		}
		return &RenderItem{ID: w.ID, Confirm: c}, nil

	case ItemThinking:
		var text string
		if len(w.Content) > 0 {
			if err := json.Unmarshal(w.Content, &text); err != nil {
				return nil, fmt.Errorf("thinking %s: %w", w.ID, err)
			}
		}
		return &ThinkingItem{ID: w.ID, Content: text}, nil

	case ItemTool:
		content, err := decodeAny(w.Content)
		if err != nil {
			return nil, err
		}
		return &ToolItem{ID: w.ID, ToolCallID: w.ToolCallID, Content: content}, nil

	case ItemCallTools:
		content, err := decodeAny(w.Content)
		if err != nil {
			return nil, err
		}
		return &CallToolsItem{ID: w.ID, Content: content, ToolCalls: w.ToolCalls}, nil
	}

	return nil, fmt.Errorf("unknown item type %q", kind.String())
}

// DecodeItems parses a stored JSON array of items.
func DecodeItems(data []byte) ([]Item, error) {
	result := gjson.ParseBytes(data)
	if !gjson.ValidBytes(data) || !result.IsArray() {
		return nil, errors.New("content is not an item array")
	}

	items := make([]Item, 0, len(result.Array()))
	var decodeErr error
	result.ForEach(func(_, value gjson.Result) bool {
		item, err := DecodeItem([]byte(value.Raw))
		if err != nil {
			decodeErr = err
			return false
		}
		items = append(items, item)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return items, nil
}

func decodeAny(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Row is a stored message as the store reads it.
type Row struct {
	ID      string
	ChatID  string
	Role    Role
	Status  Status
	Content string
}

// DecodeRow turns a stored row into a Message. A user row holds a single
// item, or legacy raw text which becomes one message item; every other role
// holds an item array.
func DecodeRow(row Row) (Message, error) {
	msg := Message{ID: row.ID, ChatID: row.ChatID, Role: row.Role, Status: row.Status}
	if msg.Status == "" {
		msg.Status = StatusSuccess
	}

	switch row.Role {
	case RoleUser:
		items, err := decodeUserContent(row)
		if err != nil {
			return Message{}, &CodecError{MessageID: row.ID, Err: err}
		}
		msg.Items = items
	default:
		if row.Content == "" {
			return msg, nil
		}
		items, err := DecodeItems([]byte(row.Content))
		if err != nil {
			return Message{}, &CodecError{MessageID: row.ID, Err: err}
		}
		msg.Items = items
	}

	return msg, nil
}

func decodeUserContent(row Row) ([]Item, error) {
	if row.Content == "" {
		return nil, nil
	}

	data := []byte(row.Content)
	if gjson.ValidBytes(data) {
		parsed := gjson.ParseBytes(data)
		switch {
		case parsed.IsArray():
			return DecodeItems(data)
		case parsed.IsObject() && parsed.Get("type").Exists():
			item, err := DecodeItem(data)
			if err != nil {
				return nil, err
			}
			return []Item{item}, nil
		}
	}

	// anything else is text the user typed, even when it parses as JSON
	return []Item{&MessageItem{ID: row.ID, Content: row.Content}}, nil
}

// EncodeContent produces the stored content column for a message: a single
// item object for a one-item user message, an item array otherwise.
func EncodeContent(role Role, items []Item) (string, error) {
	if role == RoleUser && len(items) == 1 {
		data, err := EncodeItem(items[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return EncodeItems(items)
}

// Transcript is a decoded conversation: the ordered messages plus an index
// of every thought by item id. Failures lists rows that could not be
// decoded; they are left out of Messages.
type Transcript struct {
	Messages []Message
	Thoughts map[string]*ThoughtItem
	Failures []error
}

func DecodeTranscript(rows []Row) Transcript {
	t := Transcript{
		Messages: make([]Message, 0, len(rows)),
		Thoughts: make(map[string]*ThoughtItem),
	}
	for _, row := range rows {
		msg, err := DecodeRow(row)
		if err != nil {
			t.Failures = append(t.Failures, err)
			continue
		}
		for _, thought := range msg.Thoughts() {
			t.Thoughts[thought.ID] = thought
		}
		t.Messages = append(t.Messages, msg)
	}
	return t
}
