package model

import (
	"fmt"
	"strings"
)

// CodecError reports stored content that cannot be turned back into items.
type CodecError struct {
	MessageID string
	Err       error
}

func (e *CodecError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("decode message content: %v", e.Err)
	}
	return fmt.Sprintf("decode message %s: %v", e.MessageID, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// ChatErrorPrefix marks message text that reports a failure to the user.
const ChatErrorPrefix = "Chat error: "

// FormatErrorMessage renders err for display inside the transcript.
func FormatErrorMessage(err error) string {
	if err == nil {
		return ChatErrorPrefix + "unknown error"
	}
	return ChatErrorPrefix + err.Error()
}

func IsChatError(message string) bool {
	return strings.HasPrefix(message, ChatErrorPrefix)
}
