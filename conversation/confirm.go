package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"toolchat/model"
)

var (
	ErrUnknownConfirmation   = errors.New("unknown confirmation")
	ErrDuplicateConfirmation = errors.New("confirmation already registered")
	ErrConfirmationRemoved   = errors.New("confirmation removed before it was resolved")
)

// ConfirmKey addresses a render confirmation.
type ConfirmKey struct {
	ConversationID string
	ChatID         string
	ItemID         string
}

func (k ConfirmKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ConversationID, k.ChatID, k.ItemID)
}

// PendingConfirmation is a registered confirmation together with the
// stored message that holds its render item.
type PendingConfirmation struct {
	Key       ConfirmKey
	UserID    string
	MessageID string
	Confirm   model.Confirmation

	// item is the render item in the caller's in-memory message. It
	// receives the result on resolve so that a later store of that
	// message keeps the answer.
	item *model.RenderItem
}

// WriteBack persists the terminal result of a confirmation.
type WriteBack func(ctx context.Context, c PendingConfirmation) error

type confirmEntry struct {
	PendingConfirmation
	done    chan struct{}
	removed bool
}

// Confirmations tracks render confirmations awaiting the user. Each one is
// resolved once, to ok or cancel, and its result is written back through
// the WriteBack it was registered with.
type Confirmations struct {
	mu        sync.Mutex
	entries   map[ConfirmKey]*confirmEntry
	writeBack WriteBack
	logger    *slog.Logger
}

func NewConfirmations(writeBack WriteBack, logger *slog.Logger) *Confirmations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Confirmations{
		entries:   make(map[ConfirmKey]*confirmEntry),
		writeBack: writeBack,
		logger:    logger.With("component", "confirmations"),
	}
}

// Add registers a pending confirmation.
func (c *Confirmations) Add(p PendingConfirmation) error {
	if p.Confirm.Result != model.ConfirmPending {
		return fmt.Errorf("confirmation %s is already %s", p.Key, p.Confirm.Result)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[p.Key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConfirmation, p.Key)
	}
	c.entries[p.Key] = &confirmEntry{PendingConfirmation: p, done: make(chan struct{})}
	c.logger.Debug("confirmation added", "key", p.Key.String(), "type", p.Confirm.Type)
	return nil
}

// Resolve records the user's answer, wakes waiters and writes the result
// back. The entry leaves the registry whether or not the write succeeds.
func (c *Confirmations) Resolve(ctx context.Context, key ConfirmKey, result model.ConfirmResult) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownConfirmation, key)
	}
	if err := e.Confirm.Resolve(result); err != nil {
		c.mu.Unlock()
		return err
	}
	if e.item != nil {
		e.item.Confirm.Result = e.Confirm.Result
	}
	delete(c.entries, key)
	close(e.done)
	resolved := e.PendingConfirmation
	c.mu.Unlock()

	c.logger.Debug("confirmation resolved", "key", key.String(), "result", result)
	return c.persist(ctx, resolved)
}

// Wait blocks until the confirmation is resolved or ctx ends.
func (c *Confirmations) Wait(ctx context.Context, key ConfirmKey) (model.ConfirmResult, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownConfirmation, key)
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.removed {
		return "", ErrConfirmationRemoved
	}
	return e.Confirm.Result, nil
}

// Pending lists unresolved confirmations in key order.
func (c *Confirmations) Pending() []PendingConfirmation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]PendingConfirmation, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.PendingConfirmation)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Remove drops a confirmation without resolving it.
func (c *Confirmations) Remove(key ConfirmKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// RemoveConversation drops every confirmation of a conversation.
func (c *Confirmations) RemoveConversation(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.ConversationID == conversationID {
			c.removeLocked(key)
		}
	}
}

// Clear drops every confirmation.
func (c *Confirmations) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.removeLocked(key)
	}
}

func (c *Confirmations) removeLocked(key ConfirmKey) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.removed = true
	close(e.done)
	delete(c.entries, key)
}

// CancelPending resolves every pending confirmation as cancel. It runs when
// the application closes so that no confirmation is stored unanswered.
func (c *Confirmations) CancelPending(ctx context.Context) error {
	var errs []error
	for _, p := range c.Pending() {
		err := c.Resolve(ctx, p.Key, model.ConfirmCancel)
		switch {
		case errors.Is(err, ErrUnknownConfirmation):
			// answered meanwhile
		case err != nil:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.logger.Warn("cancelling pending confirmations failed", "errors", len(errs))
	}
	return errors.Join(errs...)
}

func (c *Confirmations) persist(ctx context.Context, p PendingConfirmation) error {
	if c.writeBack == nil {
		return nil
	}
	if err := c.writeBack(ctx, p); err != nil {
		c.logger.Warn("confirmation write-back failed", "key", p.Key.String(), "err", err)
		return fmt.Errorf("write back confirmation %s: %w", p.Key, err)
	}
	return nil
}
