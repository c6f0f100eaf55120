// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdallahelabd/bioterm/internal/model"
)

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

// Memory is an in-process Store. It backs offline mode and tests, and doubles
// as the reference for remote-store semantics: server-assigned ids and
// timestamps, snapshot-per-change fan-out, last-write-wins updates.
type Memory struct {
	mu       sync.Mutex
	messages []model.Message
	images   map[string]inlineImage
	blobs    map[string][]byte
	subs     map[int]*snapshotSub
	nextSub  int
	closed   bool
}

type inlineImage struct {
	mime string
	data []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		images: make(map[string]inlineImage),
		blobs:  make(map[string][]byte),
		subs:   make(map[int]*snapshotSub),
	}
}

// Append stores msg with a fresh id and the current time.
func (m *Memory) Append(_ context.Context, msg model.Message) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return model.Message{}, fmt.Errorf("store: closed")
	}

	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, msg)
	m.broadcastLocked()
	return msg, nil
}

// Update applies patch to the message with the given id.
func (m *Memory) Update(_ context.Context, id string, patch model.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			patch.Apply(&m.messages[i])
			m.broadcastLocked()
			return nil
		}
	}
	return ErrNotFound
}

// Delete removes the message with the given id.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			m.broadcastLocked()
			return nil
		}
	}
	return ErrNotFound
}

// DeleteThread removes every message whose counterpart is handle. Deleting a
// thread that has no messages is not an error.
func (m *Memory) DeleteThread(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.messages[:0]
	removed := false
	for _, msg := range m.messages {
		if msg.Counterpart() == handle {
			removed = true
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	if removed {
		m.broadcastLocked()
	}
	return nil
}

// Subscribe opens a snapshot feed seeded with the current state.
func (m *Memory) Subscribe(ctx context.Context) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("store: closed")
	}

	id := m.nextSub
	m.nextSub++
	sub := newSnapshotSub(func() { m.dropSub(id) })
	m.subs[id] = sub
	sub.push(m.snapshotLocked())

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}

// PutInlineImage stores the image bytes and returns a record id.
func (m *Memory) PutInlineImage(_ context.Context, mime string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.images[id] = inlineImage{mime: mime, data: append([]byte(nil), data...)}
	return id, nil
}

// GetInlineImage fetches a stored inline image.
func (m *Memory) GetInlineImage(_ context.Context, id string) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, ok := m.images[id]
	if !ok {
		return "", nil, ErrNotFound
	}
	return img.mime, append([]byte(nil), img.data...), nil
}

// UploadBlob stores the bytes and returns a synthetic mem:// URL.
func (m *Memory) UploadBlob(_ context.Context, mime string, data []byte, progress func(float64)) (string, error) {
	m.mu.Lock()
	id := uuid.NewString()
	m.blobs[id] = append([]byte(nil), data...)
	m.mu.Unlock()

	if progress != nil {
		progress(1)
	}
	return "mem://blobs/" + id, nil
}

// Close cancels every open subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	subs := make([]*snapshotSub, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.subs = map[int]*snapshotSub{}
	m.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	return nil
}

// snapshotLocked copies the message list sorted by creation time ascending.
// Append keeps insertion order, but patched timestamps from tests may not, so
// the sort is unconditional.
func (m *Memory) snapshotLocked() []model.Message {
	snap := make([]model.Message, len(m.messages))
	copy(snap, m.messages)
	sort.SliceStable(snap, func(i, j int) bool {
		return snap[i].CreatedAt.Before(snap[j].CreatedAt)
	})
	return snap
}

func (m *Memory) broadcastLocked() {
	snap := m.snapshotLocked()
	for _, sub := range m.subs {
		sub.push(snap)
	}
}

func (m *Memory) dropSub(id int) {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
}
