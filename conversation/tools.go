package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"toolchat/mcp"
	"toolchat/model"
	"toolchat/storage"
)

// RunToolCall executes one model tool call on behalf of msg. A thought
// item tracks the call: it is stored pending before the call and resolved
// after it, and the tool output is appended as a tool item. When the call
// itself fails, including a cancelled ctx or a closed manager, msg is
// finished with the error status and a chat error item. The outcome is
// stored even after ctx ends. The returned error reports only persistence
// failures.
func (s *Service) RunToolCall(ctx context.Context, sess *Session, msg *model.Message, call model.ToolCall) (mcp.ToolCallResult, error) {
	if s.tools == nil {
		return nil, ErrToolsUnavailable
	}
	storeCtx := context.WithoutCancel(ctx)

	_, _, args, parseErr := mcp.ParseToolCall(call)
	thought := model.NewThought(uuid.NewString(), call.Function.Name, argumentsOrRaw(args, call))
	msg.Append(thought)

	if parseErr != nil {
		thought.Resolve(parseErr.Error(), true)
		msg.Append(&model.ToolItem{ID: uuid.NewString(), ToolCallID: call.ID, Content: parseErr.Error()})
		res := mcp.CallFailure{Message: parseErr.Error(), Err: parseErr, Thought: thought.ID}
		return res, s.store.UpdateMessage(storeCtx, sess.UserID(), *msg)
	}

	if err := s.store.UpdateMessage(ctx, sess.UserID(), *msg); err != nil {
		return nil, err
	}

	s.logger.Debug("running tool call", "tool", call.Function.Name, "thought", thought.ID)
	res := s.tools.CallTool(ctx, call.Function.Name, args, thought.ID)

	switch r := res.(type) {
	case mcp.CallSuccess:
		output := r.Text()
		var response any = output
		if output == "" && r.Result != nil {
			response = r.Result
		}
		thought.Resolve(response, false)
		msg.Append(&model.ToolItem{ID: uuid.NewString(), ToolCallID: call.ID, Content: output})

	case mcp.CallFailure:
		thought.Resolve(r.Message, true)
		msg.Append(&model.ToolItem{ID: uuid.NewString(), ToolCallID: call.ID, Content: r.Message})
		if callFailed(r.Err) {
			s.logger.Warn("tool call failed", "tool", call.Function.Name, "err", r.Err)
			msg.Append(&model.MessageItem{ID: uuid.NewString(), Content: model.FormatErrorMessage(r.Err)})
			if err := msg.Finish(model.StatusError); err != nil {
				s.logger.Warn("message already finished", "message", msg.ID, "status", msg.Status)
			}
		}
	}

	return res, s.store.UpdateMessage(storeCtx, sess.UserID(), *msg)
}

// callFailed separates failures of the call itself from errors the model
// can act on: a nil err means the provider reported the error, and an
// unknown server is a bad tool name.
func callFailed(err error) bool {
	return err != nil && !errors.Is(err, mcp.ErrUnknownServer)
}

func argumentsOrRaw(args map[string]any, call model.ToolCall) any {
	if args != nil {
		return args
	}
	return call.Function.Arguments
}

// RequestConfirmation appends a render item for confirm to msg, stores
// msg and registers the confirmation under the active conversation and
// chat. Resolving it also sets the result on the item in msg.
func (s *Service) RequestConfirmation(ctx context.Context, sess *Session, msg *model.Message, confirm model.Confirmation) (ConfirmKey, error) {
	conversationID, err := s.activeConversation(sess)
	if err != nil {
		return ConfirmKey{}, err
	}

	if confirm.ID == "" {
		confirm.ID = uuid.NewString()
	}
	confirm.Result = model.ConfirmPending
	item := &model.RenderItem{ID: uuid.NewString(), Confirm: confirm}
	msg.Append(item)

	if err := s.store.UpdateMessage(ctx, sess.UserID(), *msg); err != nil {
		return ConfirmKey{}, err
	}

	key := ConfirmKey{ConversationID: conversationID, ChatID: msg.ChatID, ItemID: item.ID}
	err = s.confirmations.Add(PendingConfirmation{
		Key:       key,
		UserID:    sess.UserID(),
		MessageID: msg.ID,
		Confirm:   confirm,
		item:      item,
	})
	return key, err
}

// ResolveConfirmation answers a pending confirmation.
func (s *Service) ResolveConfirmation(ctx context.Context, key ConfirmKey, result model.ConfirmResult) error {
	return s.confirmations.Resolve(ctx, key, result)
}

func (s *Service) writeBackConfirmation(ctx context.Context, p PendingConfirmation) error {
	msg, err := s.store.GetMessage(ctx, p.UserID, p.MessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("message %s of confirmation %s: %w", p.MessageID, p.Key, storage.ErrNotFound)
	}

	for _, item := range msg.Items {
		render, ok := item.(*model.RenderItem)
		if !ok || render.ID != p.Key.ItemID {
			continue
		}
		render.Confirm.Result = p.Confirm.Result
		return s.store.UpdateMessage(ctx, p.UserID, *msg)
	}
	return fmt.Errorf("render item %s in message %s: %w", p.Key.ItemID, p.MessageID, storage.ErrNotFound)
}
