// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package store abstracts the persistent message collection. The spec of the
// collaborator is small: append, update-by-id, delete-by-id, and a live
// subscription that delivers the full ordered snapshot on every observed
// change. There are no transactions and no conditional writes; concurrent
// field updates are last-write-wins.
//
// Two implementations exist: Memory (in-process, used offline and in tests)
// and Remote (HTTP client of a biosyncd instance).
package store

import (
	"context"
	"errors"

	"github.com/abdallahelabd/bioterm/internal/model"
)

// ErrNotFound is returned when an id does not name a stored record.
var ErrNotFound = errors.New("store: record not found")

// Subscription is a live feed of store snapshots. Each delivered slice is
// the complete message list ordered by creation time ascending; the consumer
// replaces its state wholesale. Cancel tears the feed down and closes the
// channel; it does not affect writes already in flight.
type Subscription interface {
	// Snapshots delivers full ordered snapshots. Slow consumers see fewer,
	// newer snapshots rather than a backlog: intermediate snapshots may be
	// dropped, the latest never is.
	Snapshots() <-chan []model.Message
	Cancel()
}

// Store is the persistent message collection plus its image side tables.
type Store interface {
	// Append stores a new message. ID and CreatedAt are assigned by the
	// store; values supplied by the caller are ignored. The stored record
	// is returned.
	Append(ctx context.Context, msg model.Message) (model.Message, error)

	// Update applies a partial patch to a stored message.
	Update(ctx context.Context, id string, patch model.Patch) error

	// Delete removes one message.
	Delete(ctx context.Context, id string) error

	// DeleteThread removes every message whose counterpart is handle.
	DeleteThread(ctx context.Context, handle string) error

	// Subscribe opens a live snapshot feed. The current snapshot is
	// delivered immediately.
	Subscribe(ctx context.Context) (Subscription, error)

	// PutInlineImage stores an image as an inline-encoded record and
	// returns its id.
	PutInlineImage(ctx context.Context, mime string, data []byte) (string, error)

	// GetInlineImage fetches an inline image record by id.
	GetInlineImage(ctx context.Context, id string) (mime string, data []byte, err error)

	// UploadBlob stores an image in blob storage, reporting progress in
	// [0,1], and returns the download URL.
	UploadBlob(ctx context.Context, mime string, data []byte, progress func(float64)) (string, error)

	// Close releases client resources. In-flight subscriptions are
	// cancelled.
	Close() error
}
