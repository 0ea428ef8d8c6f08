package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

func TestGenerateLabel(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		validate func(t *testing.T, got string)
	}{
		{
			name:  "short message is kept",
			input: "hello there",
			validate: func(t *testing.T, got string) {
				if got != "hello there" {
					t.Errorf("got %q", got)
				}
			},
		},
		{
			name:  "whitespace is collapsed",
			input: "  plan\n a \ttrip  ",
			validate: func(t *testing.T, got string) {
				if got != "plan a trip" {
					t.Errorf("got %q", got)
				}
			},
		},
		{
			name:  "long message is truncated",
			input: strings.Repeat("word ", 20),
			validate: func(t *testing.T, got string) {
				if w := runewidth.StringWidth(got); w > LabelWidth {
					t.Errorf("width %d exceeds %d", w, LabelWidth)
				}
				if !strings.HasSuffix(got, "...") {
					t.Errorf("expected ellipsis, got %q", got)
				}
			},
		},
		{
			name:  "wide runes count by display width",
			input: strings.Repeat("天", 40),
			validate: func(t *testing.T, got string) {
				if w := runewidth.StringWidth(got); w > LabelWidth {
					t.Errorf("width %d exceeds %d", w, LabelWidth)
				}
			},
		},
		{
			name:  "empty message uses the time",
			input: " \n ",
			validate: func(t *testing.T, got string) {
				if got != "Conversation Mar 5, 2:07 PM" {
					t.Errorf("got %q", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, GenerateLabel(tt.input, now))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"weather in paris": "weather-in-paris",
		"a/b\\c:d":         "a-b-c-d",
		"../secret":        "secret",
		"":                 "conversation",
		"...":              "conversation",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
