package conversation

import (
	"sync"

	"toolchat/model"
)

// NewConversationKey is the active key of a conversation that has not been
// stored yet.
const NewConversationKey = "-1"

// Session is the per-window context the Service works on: whose
// conversations are shown, in which order, which one is active and which
// chat (user turn) of it is current. It is
// passed explicitly to every Service operation; several sessions may share
// one Service.
type Session struct {
	mu            sync.Mutex
	userID        string
	activeKey     string
	chatID        string
	conversations []model.Conversation
}

func NewSession(userID string) *Session {
	return &Session{userID: userID, activeKey: NewConversationKey}
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) ActiveKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeKey
}

// ChatID is the current chat of the active conversation, empty until the
// first user message of the session.
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// IsNew reports whether no stored conversation is active.
func (s *Session) IsNew() bool {
	return s.ActiveKey() == NewConversationKey
}

// Conversations returns the in-memory ordering, most recent first.
func (s *Session) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Conversation(nil), s.conversations...)
}

// setActive switches the active conversation; the current chat belongs
// to the previous one and is dropped.
func (s *Session) setActive(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeKey = key
	s.chatID = ""
}

func (s *Session) setChat(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatID = id
}

func (s *Session) rename(id, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Label = label
		}
	}
}

func (s *Session) setConversations(list []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]model.Conversation(nil), list...)
}

// pushTop puts c first, replacing an existing entry with the same id.
func (s *Session) pushTop(c model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]model.Conversation{c}, without(s.conversations, c.ID)...)
}

func (s *Session) moveToTop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conversations {
		if c.ID != id {
			continue
		}
		if i > 0 {
			copy(s.conversations[1:i+1], s.conversations[:i])
			s.conversations[0] = c
		}
		return true
	}
	return false
}

// remove drops id from the list and resets the active key when it was
// the active conversation.
func (s *Session) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = without(s.conversations, id)
	if s.activeKey == id {
		s.activeKey = NewConversationKey
		s.chatID = ""
	}
}

func without(list []model.Conversation, id string) []model.Conversation {
	out := make([]model.Conversation, 0, len(list))
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
