package model

import (
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAI, RoleSystem:
		return true
	}
	return false
}

type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// ErrMessageFinalized is returned when a message that already reached a
// terminal status is asked to transition again.
var ErrMessageFinalized = errors.New("message already finalized")

// Message is one turn in a conversation. Items is replaced wholesale on
// update; there is no partial merge.
type Message struct {
	ID     string
	ChatID string
	Role   Role
	Status Status
	Items  []Item
}

// Finish moves a loading message to a terminal status.
func (m *Message) Finish(status Status) error {
	switch {
	case !status.Terminal():
		return fmt.Errorf("cannot finish message %s with non-terminal status %q", m.ID, status)
	case m.Status.Terminal():
		return fmt.Errorf("message %s is %s: %w", m.ID, m.Status, ErrMessageFinalized)
	}
	m.Status = status
	return nil
}

// Append adds items to the end of the message.
func (m *Message) Append(items ...Item) {
	m.Items = append(m.Items, items...)
}

// Thoughts returns the thought items of the message in order.
func (m *Message) Thoughts() []*ThoughtItem {
	var thoughts []*ThoughtItem
	for _, item := range m.Items {
		if t, ok := item.(*ThoughtItem); ok {
			thoughts = append(thoughts, t)
		}
	}
	return thoughts
}

// Conversation is identified by (UserID, ID). Messages is only populated
// when a transcript has been loaded.
type Conversation struct {
	ID        string
	UserID    string
	Label     string
	PresetID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// Chat is one exchange inside a conversation.
type Chat struct {
	ID             string
	ConversationID string
	UserID         string
	Title          string
	CreatedAt      time.Time
}
