package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"toolchat/mcp"
	"toolchat/model"
	"toolchat/storage"
)

var (
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrToolsUnavailable     = errors.New("no tool manager configured")
	ErrEmptyLabel           = errors.New("conversation label is empty")
)

// Store is the persistence the Service needs.
type Store interface {
	CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error)
	GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error)
	GetConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	DeleteConversation(ctx context.Context, userID, id string) error
	ClearConversations(ctx context.Context, userID string) (int64, error)
	RenameConversation(ctx context.Context, userID, id, label string) error
	TouchConversation(ctx context.Context, userID, id string) error
	CreateChat(ctx context.Context, chat model.Chat) (model.Chat, error)
	CreateMessage(ctx context.Context, userID, conversationID, chatID string, msg model.Message) (model.Message, error)
	UpdateMessage(ctx context.Context, userID string, msg model.Message) error
	GetMessage(ctx context.Context, userID, id string) (*model.Message, error)
	GetMessages(ctx context.Context, userID, conversationID string) (model.Transcript, error)
}

var _ Store = (*storage.Store)(nil)

// ToolCaller runs namespaced tool calls.
type ToolCaller interface {
	CallTool(ctx context.Context, namespaced string, args map[string]any, thoughtID string) mcp.ToolCallResult
	Shutdown(ctx context.Context) error
}

var _ ToolCaller = (*mcp.Manager)(nil)

// Service is the single entry point for conversation actions. It
// sequences storage and tool calls; the active conversation lives in the
// Session passed to each operation.
type Service struct {
	store         Store
	tools         ToolCaller
	confirmations *Confirmations
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a Service. tools may be nil when no tool providers are
// configured.
func New(store Store, tools ToolCaller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		tools:  tools,
		logger: logger.With("component", "conversation"),
		now:    time.Now,
	}
	s.confirmations = NewConfirmations(s.writeBackConfirmation, logger)
	return s
}

func (s *Service) Confirmations() *Confirmations { return s.confirmations }

// NewConversation makes the next message start a new conversation. Nothing
// is stored until AddConversation.
func (s *Service) NewConversation(sess *Session) {
	sess.setActive(NewConversationKey)
}

// FetchConversations reloads the session's list from storage.
func (s *Service) FetchConversations(ctx context.Context, sess *Session) ([]model.Conversation, error) {
	list, err := s.store.GetConversations(ctx, sess.UserID())
	if err != nil {
		return nil, err
	}
	sess.setConversations(list)
	return list, nil
}

// ChangeConversation activates a stored conversation and returns its
// transcript.
func (s *Service) ChangeConversation(ctx context.Context, sess *Session, id string) (model.Transcript, error) {
	c, err := s.store.GetConversation(ctx, sess.UserID(), id)
	if err != nil {
		return model.Transcript{}, err
	}
	if c == nil {
		return model.Transcript{}, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	transcript, err := s.store.GetMessages(ctx, sess.UserID(), id)
	if err != nil {
		return model.Transcript{}, err
	}
	sess.setActive(id)
	return transcript, nil
}

// AddConversation stores a new conversation and activates it, unless a
// conversation is already active, in which case it does nothing and
// reports false.
func (s *Service) AddConversation(ctx context.Context, sess *Session, firstMessage, presetID string) (bool, error) {
	if !sess.IsNew() {
		return false, nil
	}

	c, err := s.store.CreateConversation(ctx, model.Conversation{
		UserID:   sess.UserID(),
		Label:    GenerateLabel(firstMessage, s.now()),
		PresetID: presetID,
	})
	if err != nil {
		return false, err
	}

	sess.setActive(c.ID)
	sess.pushTop(c)
	s.logger.Debug("conversation created", "id", c.ID, "preset", presetID)
	return true, nil
}

func (s *Service) activeConversation(sess *Session) (string, error) {
	key := sess.ActiveKey()
	if key == NewConversationKey {
		return "", ErrNoActiveConversation
	}
	return key, nil
}

// startChat opens the chat that groups one user turn with the replies
// to it.
func (s *Service) startChat(ctx context.Context, sess *Session, conversationID, title string) (string, error) {
	chat, err := s.store.CreateChat(ctx, model.Chat{
		ConversationID: conversationID,
		UserID:         sess.UserID(),
		Title:          title,
	})
	if err != nil {
		return "", err
	}
	sess.setChat(chat.ID)
	s.logger.Debug("chat started", "conversation", conversationID, "chat", chat.ID)
	return chat.ID, nil
}

// currentChat returns the session's chat, starting an untitled one when a
// reply comes before any user message.
func (s *Service) currentChat(ctx context.Context, sess *Session, conversationID string) (string, error) {
	if id := sess.ChatID(); id != "" {
		return id, nil
	}
	return s.startChat(ctx, sess, conversationID, "")
}

// AddMessage stores a finished message with content as its single item
// and returns it for display. Empty content gives a message without items.
// A user message starts a new chat.
func (s *Service) AddMessage(ctx context.Context, sess *Session, content any, role model.Role) (model.Message, error) {
	conversationID, err := s.activeConversation(sess)
	if err != nil {
		return model.Message{}, err
	}

	var chatID string
	if role == model.RoleUser {
		text, _ := content.(string)
		chatID, err = s.startChat(ctx, sess, conversationID, GenerateLabel(text, s.now()))
	} else {
		chatID, err = s.currentChat(ctx, sess, conversationID)
	}
	if err != nil {
		return model.Message{}, err
	}

	msg := model.Message{ID: uuid.NewString(), Role: role, Status: model.StatusLoading}
	if !isEmptyContent(content) {
		msg.Append(&model.MessageItem{ID: uuid.NewString(), Content: content})
	}
	if err := msg.Finish(model.StatusSuccess); err != nil {
		return model.Message{}, err
	}

	stored, err := s.store.CreateMessage(ctx, sess.UserID(), conversationID, chatID, msg)
	if err != nil {
		return model.Message{}, err
	}
	sess.moveToTop(conversationID)
	return stored, nil
}

func isEmptyContent(content any) bool {
	switch c := content.(type) {
	case nil:
		return true
	case string:
		return c == ""
	}
	return false
}

// BeginMessage stores an empty loading message in the current chat that
// later updates fill in.
func (s *Service) BeginMessage(ctx context.Context, sess *Session, role model.Role) (model.Message, error) {
	conversationID, err := s.activeConversation(sess)
	if err != nil {
		return model.Message{}, err
	}
	chatID, err := s.currentChat(ctx, sess, conversationID)
	if err != nil {
		return model.Message{}, err
	}

	msg, err := s.store.CreateMessage(ctx, sess.UserID(), conversationID, chatID, model.Message{
		ID:     uuid.NewString(),
		Role:   role,
		Status: model.StatusLoading,
	})
	if err != nil {
		return model.Message{}, err
	}
	sess.moveToTop(conversationID)
	return msg, nil
}

// UpdateMessage replaces the stored items and status of msg.
func (s *Service) UpdateMessage(ctx context.Context, sess *Session, msg model.Message) error {
	return s.store.UpdateMessage(ctx, sess.UserID(), msg)
}

// FinishMessage moves msg to its terminal status and stores it. The
// active conversation counts as used at that moment.
func (s *Service) FinishMessage(ctx context.Context, sess *Session, msg *model.Message, status model.Status) error {
	if err := msg.Finish(status); err != nil {
		return err
	}
	if err := s.store.UpdateMessage(ctx, sess.UserID(), *msg); err != nil {
		return err
	}

	if sess.IsNew() {
		return nil
	}
	conversationID := sess.ActiveKey()
	if err := s.store.TouchConversation(ctx, sess.UserID(), conversationID); err != nil {
		return err
	}
	sess.moveToTop(conversationID)
	return nil
}

// RenameConversation relabels a stored conversation.
func (s *Service) RenameConversation(ctx context.Context, sess *Session, id, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	if err := s.store.RenameConversation(ctx, sess.UserID(), id, label); err != nil {
		return err
	}
	sess.rename(id, label)
	return nil
}

// GetMessages returns the transcript of the active conversation; a new
// conversation has an empty one.
func (s *Service) GetMessages(ctx context.Context, sess *Session) (model.Transcript, error) {
	conversationID, err := s.activeConversation(sess)
	if err != nil {
		return model.Transcript{Thoughts: map[string]*model.ThoughtItem{}}, nil
	}
	return s.store.GetMessages(ctx, sess.UserID(), conversationID)
}

// GetConversation returns a conversation with its messages loaded, or nil.
func (s *Service) GetConversation(ctx context.Context, sess *Session, id string) (*model.Conversation, error) {
	c, err := s.store.GetConversation(ctx, sess.UserID(), id)
	if err != nil || c == nil {
		return nil, err
	}

	transcript, err := s.store.GetMessages(ctx, sess.UserID(), id)
	if err != nil {
		return nil, err
	}
	c.Messages = transcript.Messages
	return c, nil
}

// DeleteConversation removes a conversation. Deleting the active one
// starts a new conversation.
func (s *Service) DeleteConversation(ctx context.Context, sess *Session, id string) error {
	if err := s.store.DeleteConversation(ctx, sess.UserID(), id); err != nil {
		return err
	}
	s.confirmations.RemoveConversation(id)
	sess.remove(id)
	return nil
}

// ClearConversation deletes all of the user's conversations.
func (s *Service) ClearConversation(ctx context.Context, sess *Session) (int64, error) {
	n, err := s.store.ClearConversations(ctx, sess.UserID())
	if err != nil {
		return 0, err
	}
	s.confirmations.Clear()
	sess.setConversations(nil)
	sess.setActive(NewConversationKey)
	return n, nil
}

// MoveConversationToTop reorders the session's list only; the stored order
// follows activity.
func (s *Service) MoveConversationToTop(sess *Session, id string) bool {
	return sess.moveToTop(id)
}

type conversationLabels []model.Conversation

func (c conversationLabels) String(i int) string { return c[i].Label }
func (c conversationLabels) Len() int            { return len(c) }

// SearchConversations fuzzy-matches labels in the session's list, best
// match first. An empty query returns the whole list.
func (s *Service) SearchConversations(sess *Session, query string) []model.Conversation {
	list := sess.Conversations()
	if query == "" {
		return list
	}

	matches := fuzzy.FindFrom(query, conversationLabels(list))
	out := make([]model.Conversation, 0, len(matches))
	for _, m := range matches {
		out = append(out, list[m.Index])
	}
	return out
}

// Shutdown cancels every pending confirmation, then stops tool calls.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.confirmations.CancelPending(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.tools != nil {
		if err := s.tools.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
