// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package model contains the data structures for chat messages and threads.
package model

import (
	"time"
)

// AdminName is the fixed identity string for the site owner. Messages
// authored under this name are replies from the admin panel; everything else
// is visitor traffic addressed to the single admin inbox.
const AdminName = "Abdallah"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role is the client-cached elevation flag. It gates the moderation panel and
// bulk message visibility; it is not a server-enforced permission.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentStrategy discriminates how an attached image is stored.
type AttachmentStrategy string

const (
	// AttachmentURL points at a blob uploaded to object storage.
	AttachmentURL AttachmentStrategy = "url"
	// AttachmentInline points at a separate record holding the image as a
	// base64-encoded field, fetched by id on render.
	AttachmentInline AttachmentStrategy = "inline"
)

// Attachment is an optional image reference on a message, tagged with the
// storage strategy that applies. Exactly one of URL or RecordID is set.
type Attachment struct {
	Strategy AttachmentStrategy `json:"strategy"`
	URL      string             `json:"url,omitempty"`
	RecordID string             `json:"record_id,omitempty"`
	MIME     string             `json:"mime,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a record in the persistent store. Identity and ordering are
// owned exclusively by the store: ID and CreatedAt are server-assigned, and
// the client never reorders beyond what snapshot replacement provides.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Recipient string    `json:"recipient,omitempty"`
	Body      string    `json:"body"`

	Attachment *Attachment `json:"attachment,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Seen flags transition at most once per role, false to true, mutated by
	// whichever role was not the author.
	SeenByRecipient bool `json:"seen_by_recipient"`
	SeenByAdmin     bool `json:"seen_by_admin"`

	// Reaction is a single emoji label toggled by the non-author party.
	Reaction string `json:"reaction,omitempty"`
}

// FromAdmin reports whether the message was authored by the site owner.
func (m *Message) FromAdmin() bool {
	return m.Author == AdminName
}

// Counterpart returns the visitor handle on the other end of the message:
// the recipient when the admin wrote it, else the author.
func (m *Message) Counterpart() string {
	if m.FromAdmin() {
		return m.Recipient
	}
	return m.Author
}

// VisibleTo reports whether a session with the given role and handle should
// see this message. Admin sees everything; a visitor sees messages they
// authored or that are addressed to them.
func (m *Message) VisibleTo(role Role, handle string) bool {
	if role == RoleAdmin {
		return true
	}
	return m.Author == handle || m.Recipient == handle
}

// =============================================================================
// PATCH TYPE
// =============================================================================

// Patch is a partial update applied to a stored message. Nil fields are left
// untouched; the store applies set fields last-write-wins.
type Patch struct {
	SeenByRecipient *bool   `json:"seen_by_recipient,omitempty"`
	SeenByAdmin     *bool   `json:"seen_by_admin,omitempty"`
	Reaction        *string `json:"reaction,omitempty"`
}

// MarkSeenByRecipient builds the patch for the recipient-side read receipt.
func MarkSeenByRecipient() Patch {
	t := true
	return Patch{SeenByRecipient: &t}
}

// MarkSeenByAdmin builds the patch for the admin-side read receipt.
func MarkSeenByAdmin() Patch {
	t := true
	return Patch{SeenByAdmin: &t}
}

// SetReaction builds a patch replacing the reaction label. An empty label
// clears it.
func SetReaction(emoji string) Patch {
	return Patch{Reaction: &emoji}
}

// Apply mutates msg with the set fields of the patch, guarding the monotonic
// seen transitions: once true a flag never goes back to false.
func (p Patch) Apply(msg *Message) {
	if p.SeenByRecipient != nil && *p.SeenByRecipient {
		msg.SeenByRecipient = true
	}
	if p.SeenByAdmin != nil && *p.SeenByAdmin {
		msg.SeenByAdmin = true
	}
	if p.Reaction != nil {
		msg.Reaction = *p.Reaction
	}
}

// =============================================================================
// THREAD GROUPING
// =============================================================================

// Thread is one visitor's ordered message history, as shown in the admin
// panel.
type Thread struct {
	Handle   string
	Messages []Message
}

// Unread reports whether any message in the thread still awaits the admin's
// read receipt. Admin-authored messages never count.
func (t *Thread) Unread() bool {
	for i := range t.Messages {
		m := &t.Messages[i]
		if !m.FromAdmin() && !m.SeenByAdmin {
			return true
		}
	}
	return false
}

// Last returns the most recent message of the thread, or nil when empty.
func (t *Thread) Last() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// GroupThreads buckets a full ordered message list by counterpart handle.
// Thread order follows first appearance in the snapshot, which the store
// keeps sorted by creation time, so older conversations come first and
// message order inside each thread is preserved.
func GroupThreads(messages []Message) []Thread {
	index := make(map[string]int)
	var threads []Thread

	for _, m := range messages {
		handle := m.Counterpart()
		if handle == "" {
			// Admin note with no recipient; nothing to group under.
			continue
		}
		i, ok := index[handle]
		if !ok {
			i = len(threads)
			index[handle] = i
			threads = append(threads, Thread{Handle: handle})
		}
		threads[i].Messages = append(threads[i].Messages, m)
	}

	return threads
}
