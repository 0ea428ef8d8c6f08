package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"toolchat/model"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	SystemStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(0, 1)
)

// RoleStyle picks the style a role's header is rendered with.
func RoleStyle(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return UserStyle
	case model.RoleSystem:
		return SystemStyle
	}
	return AssistantStyle
}

// ThoughtStyle colours a thought by its icon.
func ThoughtStyle(icon model.ThoughtStatus) lipgloss.Style {
	switch icon {
	case model.ThoughtError:
		return ErrorStyle
	case model.ThoughtPending:
		return SelectedStyle
	}
	return lipgloss.NewStyle().Foreground(successColor)
}

// FormatFooter formats alternating keys and descriptions.
// Usage: FormatFooter("list", "Conversations", "show <id>", "Transcript")
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i < len(parts); i += 2 {
		if i+1 < len(parts) {
			result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
		}
	}
	return strings.Join(result, "  ")
}
