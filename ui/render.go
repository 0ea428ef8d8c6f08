package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"toolchat/mcp"
	"toolchat/model"
)

const (
	listLabelWidth   = 32
	descriptionWidth = 60
	timeLayout       = "2006-01-02 15:04"
)

var thoughtIcons = map[model.ThoughtStatus]string{
	model.ThoughtPending: "…",
	model.ThoughtSuccess: "✓",
	model.ThoughtError:   "✗",
}

// RenderConversationList lists conversations one per line, marking the
// active one.
func RenderConversationList(list []model.Conversation, activeID string) string {
	if len(list) == 0 {
		return DimStyle.Render("No conversations.")
	}

	var sb strings.Builder
	for _, c := range list {
		marker := "  "
		label := runewidth.FillRight(runewidth.Truncate(c.Label, listLabelWidth, "..."), listLabelWidth)
		if c.ID == activeID {
			marker = SelectedStyle.Render(">") + " "
			label = SelectedStyle.Render(label)
		}
		sb.WriteString(marker)
		sb.WriteString(label)
		sb.WriteString("  ")
		sb.WriteString(DimStyle.Render(c.UpdatedAt.Local().Format(timeLayout) + "  " + c.ID))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderTranscript renders every message followed by a note per row that
// could not be decoded.
func RenderTranscript(t model.Transcript) string {
	parts := make([]string, 0, len(t.Messages)+len(t.Failures))
	for _, msg := range t.Messages {
		parts = append(parts, RenderMessage(msg))
	}
	for _, err := range t.Failures {
		parts = append(parts, ErrorStyle.Render("unreadable message: "+err.Error()))
	}
	if len(parts) == 0 {
		return DimStyle.Render("No messages.")
	}
	return strings.Join(parts, "\n\n")
}

func RenderMessage(msg model.Message) string {
	var sb strings.Builder
	header := RoleStyle(msg.Role).Render(string(msg.Role))
	if msg.Status != model.StatusSuccess {
		header += " " + DimStyle.Render("("+string(msg.Status)+")")
	}
	sb.WriteString(header)

	for _, item := range msg.Items {
		sb.WriteString("\n")
		sb.WriteString(RenderItem(item))
	}
	return sb.String()
}

// RenderItem renders one message item.
func RenderItem(item model.Item) string {
	switch it := item.(type) {
	case *model.MessageItem:
		text := contentString(it.Content)
		if model.IsChatError(text) {
			return ErrorStyle.Render(text)
		}
		return text

	case *model.ThoughtItem:
		return RenderThought(it)

	case *model.RenderItem:
		return RenderConfirmation(it.Confirm)

	case *model.ThinkingItem:
		return DimStyle.Render("thinking: " + it.Content)

	case *model.ToolItem:
		return DimStyle.Render(fmt.Sprintf("tool result [%s]: ", it.ToolCallID)) + contentString(it.Content)

	case *model.CallToolsItem:
		names := make([]string, 0, len(it.ToolCalls))
		for _, call := range it.ToolCalls {
			names = append(names, call.Function.Name)
		}
		return DimStyle.Render("calling: " + strings.Join(names, ", "))
	}
	return ""
}

func RenderThought(t *model.ThoughtItem) string {
	style := ThoughtStyle(t.Icon)
	line := style.Render(thoughtIcons[t.Icon]+" "+t.Title) + " " + DimStyle.Render(t.Description)
	return line + "\n" + indent(t.Content, "    ")
}

// RenderConfirmation draws a confirmation box with its answer state.
func RenderConfirmation(c model.Confirmation) string {
	title := c.Title
	if title == "" {
		title = "Confirm " + string(c.Type)
	}

	var state string
	switch c.Result {
	case model.ConfirmOK:
		state = UserStyle.Render(orDefault(c.OkText, "confirmed"))
	case model.ConfirmCancel:
		state = ErrorStyle.Render(orDefault(c.CancelText, "cancelled"))
	default:
		state = SelectedStyle.Render("awaiting answer")
	}

	return BoxStyle.Render(TitleStyle.Render(title) + "\n" + c.Content + "\n" + state)
}

// RenderTools lists tools by namespaced name, sorted.
func RenderTools(tools []mcp.NamedTool) string {
	if len(tools) == 0 {
		return DimStyle.Render("No tools.")
	}

	sorted := append([]mcp.NamedTool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	width := 0
	for _, t := range sorted {
		width = max(width, runewidth.StringWidth(t.Name()))
	}

	var sb strings.Builder
	for _, t := range sorted {
		sb.WriteString(HighlightStyle.Render(runewidth.FillRight(t.Name(), width)))
		if desc := firstLine(t.Tool.Description); desc != "" {
			sb.WriteString("  ")
			sb.WriteString(runewidth.Truncate(desc, descriptionWidth, "..."))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderServerErrors reports servers that failed discovery.
func RenderServerErrors(errs []error) string {
	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, ErrorStyle.Render("! ")+err.Error())
	}
	return strings.Join(lines, "\n")
}

func contentString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
