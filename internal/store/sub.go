// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package store

import (
	"sync"

	"github.com/abdallahelabd/bioterm/internal/model"
)

// snapshotSub delivers snapshots through a one-slot channel: a new snapshot
// replaces an undelivered older one, so a stalled consumer always wakes to
// the latest state instead of draining a backlog.
type snapshotSub struct {
	mu       sync.Mutex
	ch       chan []model.Message
	onCancel func()
	canceled bool
}

func newSnapshotSub(onCancel func()) *snapshotSub {
	return &snapshotSub{
		ch:       make(chan []model.Message, 1),
		onCancel: onCancel,
	}
}

func (s *snapshotSub) Snapshots() <-chan []model.Message { return s.ch }

func (s *snapshotSub) Cancel() {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	close(s.ch)
	s.mu.Unlock()
	if s.onCancel != nil {
		s.onCancel()
	}
}

func (s *snapshotSub) push(snap []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canceled {
		return
	}
	select {
	case s.ch <- snap:
	default:
		// Replace the stale undelivered snapshot.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- snap
	}
}
