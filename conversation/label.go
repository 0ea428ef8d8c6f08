package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// LabelWidth is the display width a generated label is truncated to.
const LabelWidth = 30

// GenerateLabel derives a conversation label from the first user message.
func GenerateLabel(firstMessage string, now time.Time) string {
	name := strings.Join(strings.Fields(firstMessage), " ")
	if name == "" {
		return fmt.Sprintf("Conversation %s", now.Format("Jan 2, 3:04 PM"))
	}
	return runewidth.Truncate(name, LabelWidth, "...")
}

// SanitizeFilename makes a label usable as part of a file name.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)

	name = strings.Trim(name, "-.")
	if runewidth.StringWidth(name) > 50 {
		name = runewidth.Truncate(name, 50, "")
	}
	if name == "" {
		name = "conversation"
	}
	return name
}
