// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

// Package console is the interactive terminal front end: a fake shell whose
// commands reveal bio content, a chat mode synced through the message store,
// and the owner's moderation panel.
//
// This file defines the Bubble Tea message types the console exchanges with
// its commands. All are immutable values.
package console

import (
	"github.com/abdallahelabd/bioterm/internal/chat"
	"github.com/abdallahelabd/bioterm/internal/model"
)

// animTickMsg drives one character of the typewriter reveal.
type animTickMsg struct{}

// snapshotMsg delivers a fresh visible-state update from the chat session.
type snapshotMsg chat.Update

// updatesClosedMsg signals that the session's update feed ended.
type updatesClosedMsg struct{}

// sendResultMsg reports the outcome of an outgoing message.
type sendResultMsg struct {
	Stored model.Message
	Err    error
}

// elevationMsg reports the outcome of an admin elevation attempt.
type elevationMsg struct {
	OK  bool
	Err error
}

// cvMsg delivers the rendered CV block.
type cvMsg struct {
	Content string
	Err     error
}

// attachmentStagedMsg reports a staged (validated and stored) attachment.
type attachmentStagedMsg struct {
	Attachment *model.Attachment
	Err        error
}

// opFailedMsg reports a background operation failure worth surfacing
// (reaction, moderation, read receipt plumbing).
type opFailedMsg struct {
	Err error
}
