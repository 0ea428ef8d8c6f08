package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEncodeThoughtStripsRenderingState(t *testing.T) {
	thought := &ThoughtItem{
		ID:              "th-1",
		ToolName:        "get_weather",
		RequestContent:  map[string]any{"city": "Oslo"},
		ResponseContent: "12 degrees",
		Content:         "stale rendering",
		Icon:            ThoughtPending,
	}

	data, err := EncodeItem(thought)
	require.NoError(t, err)

	assert.Equal(t, "thought", gjson.GetBytes(data, "type").String())
	assert.False(t, gjson.GetBytes(data, "content.content").Exists(), "content must not be persisted")
	assert.False(t, gjson.GetBytes(data, "content.icon").Exists(), "icon must not be persisted")
	assert.False(t, gjson.GetBytes(data, "content.iconStr").Exists())
	assert.Equal(t, "Oslo", gjson.GetBytes(data, "content.requestContent.city").String())

	// the in-memory value is untouched
	assert.Equal(t, "stale rendering", thought.Content)
}

func TestThoughtRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		request  any
		response any
		isError  bool
		icon     ThoughtStatus
	}{
		{"string payloads", "list files", "a.txt\nb.txt", false, ThoughtSuccess},
		{"structured payloads", map[string]any{"path": "/tmp", "depth": float64(2)}, []any{"a", "b"}, false, ThoughtSuccess},
		{"error result", map[string]any{"q": "x"}, "permission denied", true, ThoughtError},
		{"pending", map[string]any{"q": "x"}, nil, false, ThoughtPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &ThoughtItem{
				ID:              "th",
				ToolName:        "fs",
				RequestContent:  tt.request,
				ResponseContent: tt.response,
				IsError:         tt.isError,
				Content:         "will be dropped",
				Icon:            "bogus",
			}

			data, err := EncodeItem(in)
			require.NoError(t, err)
			out, err := DecodeItem(data)
			require.NoError(t, err)

			got, ok := out.(*ThoughtItem)
			require.True(t, ok, "decoded %T", out)
			assert.Equal(t, tt.request, got.RequestContent)
			assert.Equal(t, tt.response, got.ResponseContent)
			assert.Equal(t, tt.isError, got.IsError)
			assert.Equal(t, tt.icon, got.Icon)
			assert.NotEmpty(t, got.Content)
			assert.NotEqual(t, "will be dropped", got.Content)
		})
	}
}

func TestItemsRoundTrip(t *testing.T) {
	items := []Item{
		&MessageItem{ID: "m1", Content: "hello"},
		&ThinkingItem{ID: "k1", Content: "considering options"},
		&CallToolsItem{ID: "c1", ToolCalls: []ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: FunctionCall{Name: "weather__forecast", Arguments: `{"city":"Oslo"}`},
		}}},
		&ToolItem{ID: "t1", ToolCallID: "call_1", Content: "sunny"},
		&RenderItem{ID: "r1", Confirm: Confirmation{ID: "r1", Type: ConfirmMarkdown, Content: "# Plan", Title: "Review"}},
		&MessageItem{ID: "m2", Content: map[string]any{"kind": "card"}},
	}

	encoded, err := EncodeItems(items)
	require.NoError(t, err)

	decoded, err := DecodeItems([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, decoded, len(items))

	for i := range items {
		assert.Equal(t, items[i].ItemID(), decoded[i].ItemID())
		assert.Equal(t, items[i].Type(), decoded[i].Type())
	}
	assert.Equal(t, items[0], decoded[0])
	assert.Equal(t, items[2], decoded[2])
	assert.Equal(t, items[3], decoded[3])
	assert.Equal(t, items[4], decoded[4])
	assert.Equal(t, items[5], decoded[5])
}

func TestDecodeItemRejectsUnknownType(t *testing.T) {
	_, err := DecodeItem([]byte(`{"id":"x","type":"hologram","content":"?"}`))
	assert.ErrorContains(t, err, "unknown item type")

	_, err = DecodeItem([]byte(`{"id":"x","content":"?"}`))
	assert.Error(t, err)

	_, err = DecodeItem([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeRowUserWrapsContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    any
	}{
		{"stored item", `{"id":"u1","type":"message","content":"hello"}`, "hello"},
		{"legacy raw text", `hello there`, "hello there"},
		{"legacy json string", `"quoted"`, `"quoted"`},
		{"legacy number", `42`, "42"},
		{"legacy bool", `true`, "true"},
		{"legacy null", `null`, "null"},
		{"untyped object", `{"city":"Paris"}`, `{"city":"Paris"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeRow(Row{ID: "u1", Role: RoleUser, Content: tt.content})
			require.NoError(t, err)
			require.Len(t, msg.Items, 1)

			item, ok := msg.Items[0].(*MessageItem)
			require.True(t, ok)
			assert.Equal(t, tt.want, item.Content)
			assert.Equal(t, StatusSuccess, msg.Status)
		})
	}
}

func TestDecodeRowAIExpectsItemArray(t *testing.T) {
	_, err := DecodeRow(Row{ID: "a1", Role: RoleAI, Content: `{"id":"x","type":"message"}`})

	var codecErr *CodecError
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, "a1", codecErr.MessageID)
}

func TestDecodeTranscriptIndexesThoughtsAndIsolatesFailures(t *testing.T) {
	userContent, err := EncodeContent(RoleUser, []Item{&MessageItem{ID: "u1", Content: "hello"}})
	require.NoError(t, err)

	aiContent, err := EncodeContent(RoleAI, []Item{
		&ThoughtItem{ID: "th-1", ToolName: "search", RequestContent: map[string]any{"q": "go"}, ResponseContent: "3 hits"},
		&MessageItem{ID: "m1", Content: "found 3 results"},
	})
	require.NoError(t, err)

	rows := []Row{
		{ID: "u1", Role: RoleUser, Status: StatusSuccess, Content: userContent},
		{ID: "broken", Role: RoleAI, Status: StatusSuccess, Content: `[{"id":"z","type":"nope"}]`},
		{ID: "a1", Role: RoleAI, Status: StatusSuccess, Content: aiContent},
	}

	transcript := DecodeTranscript(rows)

	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, "u1", transcript.Messages[0].ID)
	assert.Equal(t, "a1", transcript.Messages[1].ID)

	require.Len(t, transcript.Failures, 1)
	var codecErr *CodecError
	require.True(t, errors.As(transcript.Failures[0], &codecErr))
	assert.Equal(t, "broken", codecErr.MessageID)

	require.Len(t, transcript.Thoughts, 1)
	thought := transcript.Thoughts["th-1"]
	require.NotNil(t, thought)
	assert.Equal(t, ThoughtSuccess, thought.Icon)
	assert.Contains(t, thought.Content, "3 hits")
	assert.Same(t, thought, transcript.Messages[1].Items[0])
}

func TestEncodeContentShapes(t *testing.T) {
	single, err := EncodeContent(RoleUser, []Item{&MessageItem{ID: "u", Content: "hi"}})
	require.NoError(t, err)
	assert.True(t, gjson.Parse(single).IsObject())

	many, err := EncodeContent(RoleAI, []Item{&MessageItem{ID: "a", Content: "hi"}})
	require.NoError(t, err)
	assert.True(t, gjson.Parse(many).IsArray())

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(many), &raw))
	assert.Equal(t, "message", raw[0]["type"])
}
