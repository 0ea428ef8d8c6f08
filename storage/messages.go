package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"toolchat/model"
)

// CreateMessage stores msg in the conversation and marks the conversation
// as active. An empty status is stored as loading.
func (s *Store) CreateMessage(ctx context.Context, userID, conversationID, chatID string, msg model.Message) (model.Message, error) {
	if !msg.Role.Valid() {
		return model.Message{}, wrap("create message", fmt.Errorf("invalid role %q", msg.Role))
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Status == "" {
		msg.Status = model.StatusLoading
	}

	content, err := model.EncodeContent(msg.Role, msg.Items)
	if err != nil {
		return model.Message{}, wrap("create message", err)
	}

	err = s.withTx(ctx, "create message", func(tx *sql.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations SET updated_at = ?
			WHERE id = ? AND user_id = ? AND is_deleted = 0`, now, conversationID, userID)
		if err != nil {
			return wrap("create message", err)
		}
		if err := expectRow(res, "create message", "conversation", conversationID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, chat_id, user_id, role, status, content, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, conversationID, chatID, userID, string(msg.Role), string(msg.Status), content, now, now,
		)
		return wrap("create message", err)
	})
	if err != nil {
		return model.Message{}, err
	}
	msg.ChatID = chatID
	return msg, nil
}

// UpdateMessage replaces the status and the whole item list of a stored
// message.
func (s *Store) UpdateMessage(ctx context.Context, userID string, msg model.Message) error {
	content, err := model.EncodeContent(msg.Role, msg.Items)
	if err != nil {
		return wrap("update message", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		content, string(msg.Status), s.now(), msg.ID, userID,
	)
	if err != nil {
		return wrap("update message", err)
	}
	return expectRow(res, "update message", "message", msg.ID)
}

// GetMessage returns nil when the message does not exist. A row that
// cannot be decoded yields a *model.CodecError.
func (s *Store) GetMessage(ctx context.Context, userID, id string) (*model.Message, error) {
	var row model.Row
	var role, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, role, status, content
		FROM messages
		WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID,
	).Scan(&row.ID, &row.ChatID, &role, &status, &row.Content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, wrap("get message", err)
	}

	row.Role, row.Status = model.Role(role), model.Status(status)
	msg, err := model.DecodeRow(row)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetMessages loads the conversation transcript in insertion order. Rows
// that fail to decode are reported in the transcript's Failures and left
// out; only database failures are returned as an error.
func (s *Store) GetMessages(ctx context.Context, userID, conversationID string) (model.Transcript, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, status, content
		FROM messages
		WHERE conversation_id = ? AND user_id = ? AND is_deleted = 0
		ORDER BY created_at ASC`, conversationID, userID)
	if err != nil {
		return model.Transcript{}, wrap("get messages", err)
	}
	defer rows.Close()

	var stored []model.Row
	for rows.Next() {
		var row model.Row
		var role, status string
		if err := rows.Scan(&row.ID, &row.ChatID, &role, &status, &row.Content); err != nil {
			return model.Transcript{}, wrap("get messages", err)
		}
		row.Role, row.Status = model.Role(role), model.Status(status)
		stored = append(stored, row)
	}
	if err := rows.Err(); err != nil {
		return model.Transcript{}, wrap("get messages", err)
	}

	transcript := model.DecodeTranscript(stored)
	for _, failure := range transcript.Failures {
		s.logger.Warn("skipping undecodable message", "conversation", conversationID, "err", failure)
	}
	return transcript, nil
}
