// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package chat owns the live chat session: it consumes store snapshots,
// derives what the current role may see, issues read receipts, and routes
// outgoing messages, reactions and moderation calls back to the store.
//
// State handling is deliberately dumb: every snapshot replaces the previous
// one wholesale. There is no merging, no local echo reconciliation, no
// conflict handling; the store's ordering is the truth and the session just
// filters it.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdallahelabd/bioterm/internal/identity"
	"github.com/abdallahelabd/bioterm/internal/model"
	"github.com/abdallahelabd/bioterm/internal/notify"
	"github.com/abdallahelabd/bioterm/internal/store"
)

// Update is one delivered view of the chat: the visible messages in creation
// order, already filtered for the session's role and handle.
type Update struct {
	Messages []model.Message
}

// Session is a live chat session for one identity.
type Session struct {
	store    store.Store
	id       *identity.Resolver
	notifier *notify.Notifier

	sub     store.Subscription
	cancel  context.CancelFunc
	updates chan Update

	mu sync.Mutex
	// snapshot is the latest full store state, unfiltered. Reaction toggles
	// and thread operations consult it.
	snapshot []model.Message
	// issuedMarks holds message ids whose read receipt has already been
	// sent this session, so a patch is not re-issued every snapshot while
	// the store catches up.
	issuedMarks map[string]bool
	closed      bool
}

// NewSession opens a session over the store and starts consuming snapshots.
// The notifier may be nil when the email side channel is unconfigured.
func NewSession(ctx context.Context, st store.Store, id *identity.Resolver, n *notify.Notifier) (*Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	sub, err := st.Subscribe(runCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open chat subscription: %w", err)
	}

	s := &Session{
		store:       st,
		id:          id,
		notifier:    n,
		sub:         sub,
		cancel:      cancel,
		updates:     make(chan Update, 1),
		issuedMarks: make(map[string]bool),
	}
	go s.run(runCtx)
	return s, nil
}

// Updates delivers visible-state updates. The channel holds at most one
// pending update; a newer one replaces an unconsumed older one. It closes
// when the session is closed.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Handle returns the session's identity handle.
func (s *Session) Handle() string { return s.id.Handle() }

// Role returns the session's current role.
func (s *Session) Role() model.Role { return s.id.Role() }

// Close tears down the subscription and the updates channel.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.sub.Cancel()
}

// =============================================================================
// SNAPSHOT LOOP
// =============================================================================

func (s *Session) run(ctx context.Context) {
	defer close(s.updates)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-s.sub.Snapshots():
			if !ok {
				return
			}
			s.apply(ctx, snap)
		}
	}
}

// apply replaces the session state with snap, filters the visible subset,
// issues visitor-side read receipts, and publishes the update.
func (s *Session) apply(_ context.Context, snap []model.Message) {
	role, handle := s.id.Role(), s.id.Handle()

	s.mu.Lock()
	s.snapshot = snap
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	visible := s.visible()

	// A visitor acknowledges admin replies on receipt; the admin side only
	// acknowledges when a thread is opened (MarkThreadSeen).
	if role == model.RoleVisitor {
		for _, m := range visible {
			if m.FromAdmin() && m.Recipient == handle && !m.SeenByRecipient {
				s.markSeen(m.ID, model.MarkSeenByRecipient())
			}
		}
	}

	s.publish(Update{Messages: visible})
}

// visible filters the current snapshot down to what this session may see.
func (s *Session) visible() []model.Message {
	role, handle := s.id.Role(), s.id.Handle()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, 0, len(s.snapshot))
	for _, m := range s.snapshot {
		if m.VisibleTo(role, handle) {
			out = append(out, m)
		}
	}
	return out
}

// publish puts an update in the one-slot channel, displacing a stale one.
func (s *Session) publish(u Update) {
	select {
	case s.updates <- u:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- u
	}
}

// markSeen issues a read-receipt patch at most once per message per session.
// The patch runs on its own deadline, detached from whatever triggered it.
func (s *Session) markSeen(id string, patch model.Patch) {
	s.mu.Lock()
	if s.issuedMarks[id] {
		s.mu.Unlock()
		return
	}
	s.issuedMarks[id] = true
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.store.Update(ctx, id, patch); err != nil {
			slog.Warn("failed to send read receipt", "message_id", id, "error", err)
		}
	}()
}

// =============================================================================
// OUTGOING TRAFFIC
// =============================================================================

// Send appends a visitor message addressed to the owner's inbox. The email
// side channel fires asynchronously; its failure is logged and otherwise
// invisible to the sender.
func (s *Session) Send(ctx context.Context, body string, att *model.Attachment) (model.Message, error) {
	msg := model.Message{
		Author:     s.id.Handle(),
		Body:       body,
		Attachment: att,
	}
	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	s.maybeNotify(stored)
	return stored, nil
}

// SendReply appends an admin reply addressed to one visitor. Replies never
// trigger the notification channel.
func (s *Session) SendReply(ctx context.Context, to, body string) (model.Message, error) {
	if s.id.Role() != model.RoleAdmin {
		return model.Message{}, fmt.Errorf("only the admin can send replies")
	}
	msg := model.Message{
		Author:    model.AdminName,
		Recipient: to,
		Body:      body,
	}
	stored, err := s.store.Append(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to send reply: %w", err)
	}
	return stored, nil
}

// maybeNotify fires the owner email for a visitor message, honoring the
// persisted throttle. Fire-and-forget: errors are logged, never surfaced.
func (s *Session) maybeNotify(msg model.Message) {
	if s.notifier == nil || msg.FromAdmin() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		sent, err := s.notifier.Notify(ctx, msg.Author, msg.Body, s.id.LastNotified())
		if err != nil {
			slog.Warn("owner notification failed", "error", err)
			return
		}
		if sent {
			if err := s.id.RecordNotified(time.Now()); err != nil {
				slog.Warn("failed to persist notification timestamp", "error", err)
			}
		}
	}()
}

// =============================================================================
// REACTIONS
// =============================================================================

// React toggles an emoji reaction on a message: reacting with the label the
// message already carries clears it, anything else replaces it. The toggle
// is applied to the local snapshot and published before the store round
// trip, so the view flips immediately; the next authoritative snapshot
// overwrites the speculative value either way.
func (s *Session) React(ctx context.Context, id, emoji string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.snapshot {
		if s.snapshot[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	next := emoji
	if s.snapshot[idx].Reaction == emoji {
		next = ""
	}
	s.snapshot[idx].Reaction = next
	s.mu.Unlock()

	s.publish(Update{Messages: s.visible()})

	if err := s.store.Update(ctx, id, model.SetReaction(next)); err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}
	return nil
}

// =============================================================================
// ADMIN PANEL OPERATIONS
// =============================================================================

// Threads groups the latest snapshot by visitor, in first-contact order.
func (s *Session) Threads() []model.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.GroupThreads(s.snapshot)
}

// MarkThreadSeen issues admin read receipts for every unacknowledged visitor
// message in the thread. Called when the admin opens a thread.
func (s *Session) MarkThreadSeen(handle string) {
	if s.id.Role() != model.RoleAdmin {
		return
	}

	s.mu.Lock()
	var pending []string
	for _, m := range s.snapshot {
		if m.Counterpart() == handle && !m.FromAdmin() && !m.SeenByAdmin {
			pending = append(pending, m.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range pending {
		s.markSeen(id, model.MarkSeenByAdmin())
	}
}

// DeleteMessage removes one message. Admin only.
func (s *Session) DeleteMessage(ctx context.Context, id string) error {
	if s.id.Role() != model.RoleAdmin {
		return fmt.Errorf("only the admin can delete messages")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ClearThread removes a visitor's whole conversation. Admin only.
func (s *Session) ClearThread(ctx context.Context, handle string) error {
	if s.id.Role() != model.RoleAdmin {
		return fmt.Errorf("only the admin can clear threads")
	}
	if err := s.store.DeleteThread(ctx, handle); err != nil {
		return fmt.Errorf("failed to clear thread: %w", err)
	}
	return nil
}
