package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"toolchat/model"
)

const conversationColumns = `id, user_id, label, preset_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (model.Conversation, error) {
	var c model.Conversation
	var created, updated int64
	if err := row.Scan(&c.ID, &c.UserID, &c.Label, &c.PresetID, &created, &updated); err != nil {
		return model.Conversation{}, err
	}
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	return c, nil
}

// CreateConversation inserts c. An empty ID is generated; timestamps are
// always set by the store.
func (s *Store) CreateConversation(ctx context.Context, c model.Conversation) (model.Conversation, error) {
	if c.UserID == "" {
		return model.Conversation{}, wrap("create conversation", errors.New("user id is required"))
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, label, preset_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Label, c.PresetID, now, now,
	)
	if err != nil {
		return model.Conversation{}, wrap("create conversation", err)
	}

	c.CreatedAt = fromUnix(now)
	c.UpdatedAt = c.CreatedAt
	c.Messages = nil
	return c, nil
}

// GetConversation returns nil when the conversation does not exist for the
// user.
func (s *Store) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID)

	c, err := scanConversation(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, wrap("get conversation", err)
	}
	return &c, nil
}

// GetConversations lists the user's conversations, most recently active
// first.
func (s *Store) GetConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = ? AND is_deleted = 0
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, wrap("get conversations", err)
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, wrap("get conversations", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, wrap("get conversations", rows.Err())
}

// LatestConversation returns the user's newest conversation started from
// presetID, or nil.
func (s *Store) LatestConversation(ctx context.Context, userID, presetID string) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = ? AND preset_id = ? AND is_deleted = 0
		ORDER BY created_at DESC
		LIMIT 1`, userID, presetID)

	c, err := scanConversation(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, wrap("latest conversation", err)
	}
	return &c, nil
}

func (s *Store) RenameConversation(ctx context.Context, userID, id, label string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET label = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, label, id, userID)
	if err != nil {
		return wrap("rename conversation", err)
	}
	return expectRow(res, "rename conversation", "conversation", id)
}

// TouchConversation marks the conversation as active now.
func (s *Store) TouchConversation(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, s.now(), id, userID)
	if err != nil {
		return wrap("touch conversation", err)
	}
	return expectRow(res, "touch conversation", "conversation", id)
}

// DeleteConversation soft-deletes the conversation with its chats and
// messages. Deleting an absent conversation is not an error.
func (s *Store) DeleteConversation(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, "delete conversation", func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`UPDATE conversations SET is_deleted = 1 WHERE id = ? AND user_id = ?`,
			`UPDATE chats SET is_deleted = 1 WHERE conversation_id = ? AND user_id = ?`,
			`UPDATE messages SET is_deleted = 1 WHERE conversation_id = ? AND user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id, userID); err != nil {
				return wrap("delete conversation", err)
			}
		}
		return nil
	})
}

// ClearConversations soft-deletes everything the user owns and reports how
// many conversations were removed.
func (s *Store) ClearConversations(ctx context.Context, userID string) (int64, error) {
	var cleared int64
	err := s.withTx(ctx, "clear conversations", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET is_deleted = 1 WHERE user_id = ? AND is_deleted = 0`, userID)
		if err != nil {
			return wrap("clear conversations", err)
		}
		if cleared, err = res.RowsAffected(); err != nil {
			return wrap("clear conversations", err)
		}
		for _, stmt := range []string{
			`UPDATE chats SET is_deleted = 1 WHERE user_id = ?`,
			`UPDATE messages SET is_deleted = 1 WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
				return wrap("clear conversations", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("cleared conversations", "user", userID, "count", cleared)
	return cleared, nil
}

func expectRow(res sql.Result, op, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
