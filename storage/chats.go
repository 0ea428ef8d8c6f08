package storage

import (
	"context"

	"github.com/google/uuid"

	"toolchat/model"
)

// CreateChat adds a chat to an existing conversation.
func (s *Store) CreateChat(ctx context.Context, chat model.Chat) (model.Chat, error) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, conversation_id, user_id, title, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		chat.ID, chat.ConversationID, chat.UserID, chat.Title, now,
	)
	if err != nil {
		return model.Chat{}, wrap("create chat", err)
	}

	chat.CreatedAt = fromUnix(now)
	return chat, nil
}

func (s *Store) GetChats(ctx context.Context, userID, conversationID string) ([]model.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, title, created_at
		FROM chats
		WHERE conversation_id = ? AND user_id = ? AND is_deleted = 0
		ORDER BY created_at ASC`, conversationID, userID)
	if err != nil {
		return nil, wrap("get chats", err)
	}
	defer rows.Close()

	chats := []model.Chat{}
	for rows.Next() {
		var (
			c       model.Chat
			created int64
		)
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.UserID, &c.Title, &created); err != nil {
			return nil, wrap("get chats", err)
		}
		c.CreatedAt = fromUnix(created)
		chats = append(chats, c)
	}
	return chats, wrap("get chats", rows.Err())
}
