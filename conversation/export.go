package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"toolchat/config"
	"toolchat/model"
)

type exportedMessage struct {
	ID     string          `json:"id"`
	ChatID string          `json:"chat_id,omitempty"`
	Role   model.Role      `json:"role"`
	Status model.Status    `json:"status"`
	Items  json.RawMessage `json:"items"`
}

type exportedConversation struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	PresetID  string            `json:"preset_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []exportedMessage `json:"messages"`
}

// DefaultExportPath names an export file in the user's Downloads
// directory.
func DefaultExportPath(label string, now time.Time) string {
	filename := fmt.Sprintf("toolchat-%s-%s.json", SanitizeFilename(label), now.Format("20060102-150405"))
	return filepath.Join(config.GetHomeDir(), "Downloads", filename)
}

// ExportConversation writes a conversation and its transcript as JSON to
// path, or to DefaultExportPath when path is empty, and returns the path
// written.
func (s *Service) ExportConversation(ctx context.Context, sess *Session, id, path string) (string, error) {
	c, err := s.GetConversation(ctx, sess, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}

	doc := exportedConversation{
		ID:        c.ID,
		Label:     c.Label,
		PresetID:  c.PresetID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]exportedMessage, 0, len(c.Messages)),
	}
	for _, msg := range c.Messages {
		items, err := model.EncodeItems(msg.Items)
		if err != nil {
			return "", fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
		doc.Messages = append(doc.Messages, exportedMessage{
			ID:     msg.ID,
			ChatID: msg.ChatID,
			Role:   msg.Role,
			Status: msg.Status,
			Items:  json.RawMessage(items),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if path == "" {
		path = DefaultExportPath(c.Label, s.now())
	}
	path = config.ExpandPath(path)

	// 0700/0600: transcripts may hold sensitive data
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("conversation exported", "id", id, "path", path)
	return path, nil
}
