// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"testing"
	"time"

	"github.com/abdallahelabd/bioterm/internal/model"
)

func recv(t *testing.T, sub Subscription) []model.Message {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestMemory_AppendAssignsIdentity(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	stored, err := m.Append(context.Background(), model.Message{
		ID:     "client-supplied",
		Author: "User417",
		Body:   "hi",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if stored.ID == "" || stored.ID == "client-supplied" {
		t.Errorf("ID = %q, want a store-assigned id", stored.ID)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt should be assigned by the store")
	}
}

func TestMemory_SubscribeDeliversInitialSnapshot(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	if _, err := m.Append(context.Background(), model.Message{Author: "User1", Body: "a"}); err != nil {
		t.Fatal(err)
	}
	sub, err := m.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()

	snap := recv(t, sub)
	if len(snap) != 1 || snap[0].Body != "a" {
		t.Errorf("initial snapshot = %+v", snap)
	}
}

func TestMemory_SnapshotPerChange(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	sub, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()
	recv(t, sub) // empty initial snapshot

	first, _ := m.Append(ctx, model.Message{Author: "User1", Body: "one"})
	snap := recv(t, sub)
	if len(snap) != 1 {
		t.Fatalf("snapshot after append = %d messages", len(snap))
	}

	if err := m.Update(ctx, first.ID, model.MarkSeenByAdmin()); err != nil {
		t.Fatal(err)
	}
	snap = recv(t, sub)
	if !snap[0].SeenByAdmin {
		t.Error("patch not reflected in snapshot")
	}

	if err := m.Delete(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	snap = recv(t, sub)
	if len(snap) != 0 {
		t.Errorf("snapshot after delete = %d messages", len(snap))
	}
}

func TestMemory_SlowConsumerSeesLatest(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	sub, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()

	// Do not read while several writes land; the one-slot buffer must end
	// up holding the latest state, not the first.
	for i := 0; i < 5; i++ {
		if _, err := m.Append(ctx, model.Message{Author: "User1", Body: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	snap := recv(t, sub)
	if len(snap) != 5 {
		t.Errorf("latest snapshot has %d messages, want 5", len(snap))
	}
}

func TestMemory_UpdateMissing(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	if err := m.Update(context.Background(), "nope", model.MarkSeenByAdmin()); err != ErrNotFound {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
	if err := m.Delete(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("Delete missing = %v, want ErrNotFound", err)
	}
}

func TestMemory_DeleteThread(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	m.Append(ctx, model.Message{Author: "User1", Body: "a"})
	m.Append(ctx, model.Message{Author: model.AdminName, Recipient: "User1", Body: "b"})
	m.Append(ctx, model.Message{Author: "User2", Body: "c"})

	if err := m.DeleteThread(ctx, "User1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}

	sub, _ := m.Subscribe(ctx)
	defer sub.Cancel()
	snap := recv(t, sub)
	if len(snap) != 1 || snap[0].Author != "User2" {
		t.Errorf("snapshot after thread delete = %+v", snap)
	}

	// Clearing an absent thread is a no-op, not an error.
	if err := m.DeleteThread(ctx, "UserX"); err != nil {
		t.Errorf("DeleteThread absent = %v", err)
	}
}

func TestMemory_CancelClosesChannel(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	sub, err := m.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	recv(t, sub)
	sub.Cancel()

	if _, ok := <-sub.Snapshots(); ok {
		t.Error("channel should be closed after Cancel")
	}

	// Writes after cancel must not panic or block.
	if _, err := m.Append(context.Background(), model.Message{Author: "User1"}); err != nil {
		t.Fatal(err)
	}
}

func TestMemory_ContextCancelStopsSubscription(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := m.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	recv(t, sub)
	cancel()

	select {
	case _, ok := <-sub.Snapshots():
		if ok {
			t.Error("expected closed channel after context cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close after context cancel")
	}
}

func TestMemory_InlineImageRoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	id, err := m.PutInlineImage(ctx, "image/png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("PutInlineImage: %v", err)
	}
	mime, data, err := m.GetInlineImage(ctx, id)
	if err != nil {
		t.Fatalf("GetInlineImage: %v", err)
	}
	if mime != "image/png" || len(data) != 4 {
		t.Errorf("got %q %v", mime, data)
	}

	if _, _, err := m.GetInlineImage(ctx, "missing"); err != ErrNotFound {
		t.Errorf("missing image = %v, want ErrNotFound", err)
	}
}

func TestMemory_UploadBlobReportsProgress(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	var last float64
	url, err := m.UploadBlob(context.Background(), "image/gif", []byte("gif"), func(f float64) { last = f })
	if err != nil {
		t.Fatalf("UploadBlob: %v", err)
	}
	if url == "" {
		t.Error("expected a blob URL")
	}
	if last != 1 {
		t.Errorf("final progress = %v, want 1", last)
	}
}
